package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads images referenced by URL for the upload-by-URL path.
type Fetcher struct {
	client   *resty.Client
	maxBytes int64
}

func NewFetcher(maxBytes int64) *Fetcher {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "art-metadata-batch/1.0")
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads the image at rawURL and returns its bytes, MIME type and a
// display name derived from the URL path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, "", "", fmt.Errorf("fetch image: %w", err)
	}
	if resp.IsError() {
		return nil, "", "", fmt.Errorf("fetch image: status %d", resp.StatusCode())
	}

	data := resp.Body()
	if int64(len(data)) > f.maxBytes {
		return nil, "", "", fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}

	mimeType := resp.Header().Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", "", fmt.Errorf("URL is not an image (%s)", mimeType)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		name = "remote-image"
	}
	return data, mimeType, name, nil
}
