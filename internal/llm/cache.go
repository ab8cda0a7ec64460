package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/rs/zerolog/log"

	"github.com/graysonchalmers/art-metadata-batch/internal/storage"
)

// CachedAnalyzer wraps an Analyzer with SQLite caching. Re-uploading the
// same image bytes skips the inference call entirely.
type CachedAnalyzer struct {
	inner Analyzer
	store storage.Store
}

// NewCachedAnalyzer creates a cached analyzer.
func NewCachedAnalyzer(inner Analyzer, store storage.Store) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, store: store}
}

// hashImage creates a SHA256 hash from image data.
// Includes a length prefix to prevent boundary collisions.
func hashImage(data []byte) string {
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(data)))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// AnalyzeImage implements the Analyzer interface with caching.
func (c *CachedAnalyzer) AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) (*AnalysisResult, error) {
	hash := hashImage(imageData)

	if c.store != nil {
		cached, err := c.store.GetAnalysis(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check analysis cache")
		} else if cached != nil {
			log.Debug().Str("hash", hash[:16]).Msg("analysis cache hit")
			return &AnalysisResult{
				Metadata: &ImageMetadata{
					Filename:    cached.Filename,
					Title:       cached.Title,
					Description: cached.Description,
					Tags:        append([]string(nil), cached.Tags...),
				},
				Usage: Usage{}, // Zero usage for cached result
			}, nil
		}
	}

	result, err := c.inner.AnalyzeImage(ctx, imageData, mimeType)
	if err != nil {
		return nil, err
	}

	if c.store != nil && result.Metadata != nil {
		entry := &storage.CachedAnalysis{
			Filename:    result.Metadata.Filename,
			Title:       result.Metadata.Title,
			Description: result.Metadata.Description,
			Tags:        result.Metadata.Tags,
		}
		if err := c.store.SetAnalysis(hash, entry); err != nil {
			log.Warn().Err(err).Msg("failed to cache analysis result")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached analysis result")
		}
	}

	return result, nil
}
