package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graysonchalmers/art-metadata-batch/internal/catalog"
)

// fakeEmbedder appends a marker instead of real EXIF work, and can fail for
// chosen titles.
type fakeEmbedder struct {
	failTitles map[string]bool
}

func (f *fakeEmbedder) Embed(jpegData []byte, meta Metadata) ([]byte, error) {
	if f.failTitles[meta.Title] {
		return nil, errors.New("embed failed")
	}
	return append(append([]byte(nil), jpegData...), []byte("|"+meta.Title)...), nil
}

type fakeArchiver struct {
	entries  map[string][]byte
	order    []string
	failAdd  bool
	failClose bool
	closed   bool
}

func newFakeArchiver() *fakeArchiver {
	return &fakeArchiver{entries: make(map[string][]byte)}
}

func (f *fakeArchiver) Add(name string, data []byte) error {
	if f.failAdd {
		return errors.New("add failed")
	}
	f.entries[name] = data
	f.order = append(f.order, name)
	return nil
}

func (f *fakeArchiver) Close() ([]byte, error) {
	if f.failClose {
		return nil, errors.New("close failed")
	}
	f.closed = true
	return []byte("archive"), nil
}

func identityEncoder(data []byte) ([]byte, error) { return data, nil }

func successItem(name, filename, title string) *catalog.Item {
	return &catalog.Item{
		ID:           name,
		OriginalName: name,
		Data:         []byte(name + "-bytes"),
		Status:       catalog.StatusSuccess,
		Metadata: &catalog.Metadata{
			Filename: filename,
			Title:    title,
			Tags:     []string{"a", "b"},
		},
	}
}

func TestPipelineExportsSuccessItemsOnly(t *testing.T) {
	fa := newFakeArchiver()
	p := NewPipeline(identityEncoder, &fakeEmbedder{}, func() Archiver { return fa })

	items := []*catalog.Item{
		successItem("one", "elf-archer", "Elf"),
		{ID: "idle", Status: catalog.StatusIdle, Data: []byte("x")},
		{ID: "err", Status: catalog.StatusError, Error: "boom", Data: []byte("y")},
		successItem("two", "dwarf-king", "Dwarf"),
	}

	_, stats, err := p.Export(items)
	require.NoError(t, err)
	assert.Equal(t, Stats{Exported: 2}, stats)
	assert.Equal(t, []string{"elf-archer.jpg", "dwarf-king.jpg"}, fa.order)
	assert.True(t, fa.closed)
}

func TestPipelineSkipsFailedItems(t *testing.T) {
	fa := newFakeArchiver()
	p := NewPipeline(identityEncoder, &fakeEmbedder{failTitles: map[string]bool{"Bad": true}}, func() Archiver { return fa })

	items := []*catalog.Item{
		successItem("one", "good", "Good"),
		successItem("two", "bad", "Bad"),
		successItem("three", "also-good", "Fine"),
	}

	_, stats, err := p.Export(items)
	require.NoError(t, err)
	assert.Equal(t, Stats{Exported: 2, Skipped: 1}, stats)
	assert.Equal(t, []string{"good.jpg", "also-good.jpg"}, fa.order)
}

func TestPipelineSkipsEncodeFailures(t *testing.T) {
	fa := newFakeArchiver()
	failing := func(data []byte) ([]byte, error) {
		if bytes.Contains(data, []byte("two")) {
			return nil, errors.New("decode failed")
		}
		return data, nil
	}
	p := NewPipeline(failing, &fakeEmbedder{}, func() Archiver { return fa })

	_, stats, err := p.Export([]*catalog.Item{
		successItem("one", "a", "A"),
		successItem("two", "b", "B"),
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Exported: 1, Skipped: 1}, stats)
}

func TestPipelineNameCollisionsAndEmptyFilename(t *testing.T) {
	fa := newFakeArchiver()
	p := NewPipeline(identityEncoder, &fakeEmbedder{}, func() Archiver { return fa })

	_, _, err := p.Export([]*catalog.Item{
		successItem("one", "elf", "A"),
		successItem("two", "elf", "B"),
		successItem("three", "", "C"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"elf.jpg", "elf-2.jpg", "untitled.jpg"}, fa.order)
}

func TestPipelineFinalizationFailureAborts(t *testing.T) {
	fa := newFakeArchiver()
	fa.failClose = true
	p := NewPipeline(identityEncoder, &fakeEmbedder{}, func() Archiver { return fa })

	out, _, err := p.Export([]*catalog.Item{successItem("one", "a", "A")})
	assert.Error(t, err)
	assert.Nil(t, out)
}

func TestPipelineEmptyArchiveIsValid(t *testing.T) {
	p := NewPipeline(identityEncoder, &fakeEmbedder{}, NewZipArchiver)

	out, stats, err := p.Export(nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}

func TestZipArchiverRoundTrip(t *testing.T) {
	a := NewZipArchiver()
	require.NoError(t, a.Add("one.jpg", []byte("first")))
	require.NoError(t, a.Add("two.jpg", []byte("second")))

	out, err := a.Close()
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "one.jpg", zr.File[0].Name)
	assert.Equal(t, []byte("first"), data)
}
