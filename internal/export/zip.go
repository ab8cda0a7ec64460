package export

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// ArchiveName is the filename of the exported archive.
const ArchiveName = "game-art-metadata-batch.zip"

// Archiver assembles named byte buffers into a single downloadable archive.
type Archiver interface {
	Add(name string, data []byte) error
	// Close finalizes the archive and returns its bytes. No entries may be
	// added afterwards.
	Close() ([]byte, error)
}

// NewArchiver produces a fresh archive for one export run.
type NewArchiver func() Archiver

type zipArchiver struct {
	buf *bytes.Buffer
	zw  *zip.Writer
}

// NewZipArchiver returns an Archiver producing an in-memory zip file.
func NewZipArchiver() Archiver {
	buf := new(bytes.Buffer)
	return &zipArchiver{buf: buf, zw: zip.NewWriter(buf)}
}

func (z *zipArchiver) Add(name string, data []byte) error {
	w, err := z.zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

func (z *zipArchiver) Close() ([]byte, error) {
	if err := z.zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	return z.buf.Bytes(), nil
}
