package export

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf16"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// artistName is written to the Artist tag of every exported image.
const artistName = "AI Batch Processor"

// Metadata is the descriptive block embedded into an exported JPEG.
type Metadata struct {
	Filename    string
	Title       string
	Description string
	Tags        []string
}

// Embedder writes descriptive metadata into an encoded JPEG stream.
type Embedder interface {
	Embed(jpegData []byte, meta Metadata) ([]byte, error)
}

// ExifEmbedder implements Embedder by splicing an EXIF APP1 segment into the
// JPEG header region. Title, comment and keywords use the Windows XP* tags,
// which require UTF-16LE code units with a trailing null terminator.
type ExifEmbedder struct{}

func NewExifEmbedder() *ExifEmbedder {
	return &ExifEmbedder{}
}

func (e *ExifEmbedder) Embed(jpegData []byte, meta Metadata) ([]byte, error) {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(jpegData)
	if err != nil {
		return nil, fmt.Errorf("parse jpeg: %w", err)
	}
	sl, ok := intfc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("unexpected media context %T", intfc)
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		// Freshly re-encoded JPEGs carry no EXIF block yet.
		im, errMapping := exifcommon.NewIfdMappingWithStandard()
		if errMapping != nil {
			return nil, fmt.Errorf("create ifd mapping: %w", errMapping)
		}
		rootIb = exif.NewIfdBuilder(im, exif.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	}

	ifdIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD0")
	if err != nil {
		return nil, fmt.Errorf("get IFD0 builder: %w", err)
	}

	tags := []struct {
		name  string
		value any
	}{
		{"ImageDescription", meta.Description},
		{"Artist", artistName},
		{"XPTitle", utf16leBytes(meta.Title)},
		{"XPComment", utf16leBytes(meta.Description)},
		{"XPKeywords", utf16leBytes(strings.Join(meta.Tags, ";"))},
	}
	for _, tag := range tags {
		if err := ifdIb.SetStandardWithName(tag.name, tag.value); err != nil {
			return nil, fmt.Errorf("set %s: %w", tag.name, err)
		}
	}

	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("set exif segment: %w", err)
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return nil, fmt.Errorf("write jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// utf16leBytes encodes s as UTF-16LE code units with a trailing null
// terminator, the encoding the XP* byte tags require.
func utf16leBytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units)*2+2)
	for _, u := range units {
		out = append(out, byte(u), byte(u>>8))
	}
	return append(out, 0x00, 0x00)
}
