package export

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/graysonchalmers/art-metadata-batch/internal/catalog"
	"github.com/graysonchalmers/art-metadata-batch/internal/imaging"
)

// Encoder re-encodes arbitrary image bytes into a JPEG stream.
type Encoder func(data []byte) ([]byte, error)

// Stats summarizes one export run.
type Stats struct {
	Exported int `json:"exported"`
	Skipped  int `json:"skipped"`
}

// Pipeline turns successfully-analyzed items into a zip of renamed JPEGs
// with descriptive metadata embedded. The encoder, embedder and archiver are
// injected so the pipeline is testable without real codec work.
type Pipeline struct {
	encode     Encoder
	embedder   Embedder
	newArchive NewArchiver
}

func NewPipeline(encode Encoder, embedder Embedder, newArchive NewArchiver) *Pipeline {
	return &Pipeline{encode: encode, embedder: embedder, newArchive: newArchive}
}

// NewDefaultPipeline wires the real JPEG encoder, EXIF embedder and zip
// archiver.
func NewDefaultPipeline() *Pipeline {
	return NewPipeline(imaging.EncodeJPEG, NewExifEmbedder(), NewZipArchiver)
}

// Export processes every success item in collection order. A failure on one
// item is logged and that item skipped; a finalization failure aborts the
// whole export. Zero eligible items still produce a valid, empty archive.
func (p *Pipeline) Export(items []*catalog.Item) ([]byte, Stats, error) {
	archive := p.newArchive()
	stats := Stats{}
	used := make(map[string]int)

	for _, item := range items {
		if item.Status != catalog.StatusSuccess || item.Metadata == nil {
			continue
		}

		data, err := p.exportOne(item)
		if err != nil {
			log.Error().Err(err).
				Str("itemId", item.ID).
				Str("originalName", item.OriginalName).
				Msg("skipping item in export")
			stats.Skipped++
			continue
		}

		name := entryName(item.Metadata.Filename, used)
		if err := archive.Add(name, data); err != nil {
			log.Error().Err(err).Str("itemId", item.ID).Str("entry", name).Msg("skipping item in export")
			stats.Skipped++
			continue
		}
		stats.Exported++
	}

	out, err := archive.Close()
	if err != nil {
		return nil, stats, fmt.Errorf("finalize archive: %w", err)
	}
	return out, stats, nil
}

func (p *Pipeline) exportOne(item *catalog.Item) ([]byte, error) {
	jpegData, err := p.encode(item.Data)
	if err != nil {
		return nil, fmt.Errorf("re-encode: %w", err)
	}

	embedded, err := p.embedder.Embed(jpegData, Metadata{
		Filename:    item.Metadata.Filename,
		Title:       item.Metadata.Title,
		Description: item.Metadata.Description,
		Tags:        item.Metadata.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("embed metadata: %w", err)
	}
	return embedded, nil
}

// entryName picks the archive entry name for a normalized filename, keeping
// names unique within one archive.
func entryName(filename string, used map[string]int) string {
	if filename == "" {
		filename = "untitled"
	}
	used[filename]++
	if n := used[filename]; n > 1 {
		return fmt.Sprintf("%s-%d.jpg", filename, n)
	}
	return filename + ".jpg"
}
