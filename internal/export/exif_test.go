package export

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	exif "github.com/dsoprea/go-exif/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graysonchalmers/art-metadata-batch/internal/imaging"
)

func TestUTF16LEBytes(t *testing.T) {
	// "Hi" -> H, i as little-endian code units plus the null terminator.
	assert.Equal(t, []byte{0x48, 0x00, 0x69, 0x00, 0x00, 0x00}, utf16leBytes("Hi"))
	assert.Equal(t, []byte{0x00, 0x00}, utf16leBytes(""))
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 16), B: uint8(y * 16), A: 255})
		}
	}
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	jpegData, err := imaging.EncodeJPEG(pngBuf.Bytes())
	require.NoError(t, err)
	return jpegData
}

func TestExifEmbedderWritesDescriptiveFields(t *testing.T) {
	meta := Metadata{
		Filename:    "female-elf-archer",
		Title:       "Elf Archer",
		Description: "An elf archer with a longbow in a misty forest",
		Tags:        []string{"elf", "archer", "forest"},
	}

	embedded, err := NewExifEmbedder().Embed(testJPEG(t), meta)
	require.NoError(t, err)

	// The output must still be a decodable JPEG.
	_, err = jpeg.Decode(bytes.NewReader(embedded))
	require.NoError(t, err)

	rawExif, err := exif.SearchAndExtractExif(embedded)
	require.NoError(t, err)

	tags, _, err := exif.GetFlatExifData(rawExif, nil)
	require.NoError(t, err)

	byName := make(map[string]exif.ExifTag)
	for _, tag := range tags {
		byName[tag.TagName] = tag
	}

	require.Contains(t, byName, "ImageDescription")
	assert.Equal(t, meta.Description, byName["ImageDescription"].Value)

	require.Contains(t, byName, "Artist")
	assert.Equal(t, artistName, byName["Artist"].Value)

	require.Contains(t, byName, "XPTitle")
	assert.Equal(t, utf16leBytes(meta.Title), byName["XPTitle"].Value)

	require.Contains(t, byName, "XPComment")
	assert.Equal(t, utf16leBytes(meta.Description), byName["XPComment"].Value)

	require.Contains(t, byName, "XPKeywords")
	assert.Equal(t, utf16leBytes("elf;archer;forest"), byName["XPKeywords"].Value)
}

func TestExifEmbedderRejectsNonJPEG(t *testing.T) {
	_, err := NewExifEmbedder().Embed([]byte("definitely not a jpeg"), Metadata{})
	assert.Error(t, err)
}
