// Package imaging decodes uploaded images and re-encodes them as JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// exportQuality guarantees a metadata-embeddable container without
	// visible degradation.
	exportQuality  = 95
	previewQuality = 85
	// PreviewMaxSide caps preview thumbnails at the same size used for the
	// review grid.
	PreviewMaxSide = 640
)

// EncodeJPEG decodes data in any registered format and re-encodes it as a
// JPEG byte stream at export quality.
func EncodeJPEG(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(exportQuality)(&buf, img); err != nil {
		return nil, fmt.Errorf("encode jpeg (from %s): %w", format, err)
	}
	return buf.Bytes(), nil
}

// Thumbnail produces a JPEG preview scaled so its longer side is at most
// maxSide. Images already smaller are re-encoded without scaling.
func Thumbnail(data []byte, maxSide int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("image has empty bounds %v", b)
	}

	if w > maxSide || h > maxSide {
		if w >= h {
			scale := float64(w) / float64(maxSide)
			img = transform.Resize(img, maxSide, int(float64(h)/scale), transform.Linear)
		} else {
			scale := float64(h) / float64(maxSide)
			img = transform.Resize(img, int(float64(w)/scale), maxSide, transform.Linear)
		}
	}

	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(previewQuality)(&buf, img); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
