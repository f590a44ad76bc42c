package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in     string
		format Format
		ext    string
	}{
		{"png", FormatPNG, "png"},
		{"PNG", FormatPNG, "png"},
		{".Jpg", FormatJPEG, "jpg"},
		{"jpeg", FormatJPEG, "jpeg"},
		{"tif", FormatTIFF, "tif"},
		{" webp ", FormatWEBP, "webp"},
		{"heic", FormatUnknown, "heic"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseTarget(tt.in)
			assert.Equal(t, tt.format, got.Format)
			assert.Equal(t, tt.ext, got.Ext())
		})
	}
}

func TestMIMEType(t *testing.T) {
	tests := map[string]string{
		"png":  "image/png",
		"BMP":  "image/bmp",
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"webp": "image/webp",
		"tga":  "image/x-tga",
		"ico":  "image/x-icon",
		"tiff": "image/tiff",
		"gif":  "image/gif",
		"xyz":  "application/octet-stream",
	}
	for name, want := range tests {
		assert.Equal(t, want, MIMEType(name), name)
	}
}

func TestFormatsExcludesUnknown(t *testing.T) {
	formats := Formats()
	assert.Len(t, formats, 8)
	assert.NotContains(t, formats, FormatUnknown)
}

func TestNaming(t *testing.T) {
	png := ParseTarget("png")
	jpg := ParseTarget("jpg")

	assert.Equal(t, "photo", Stem("photo.jpeg"))
	assert.Equal(t, "photo", Stem("dir/sub/photo.jpeg"))
	assert.Equal(t, "photo", Stem(`C:\upload\photo.jpeg`))
	assert.Equal(t, "archive.tar", Stem("archive.tar.gz"))

	assert.Equal(t, "photo.png", OutputName("photo.jpeg", png))
	assert.Equal(t, "image.jpg", OutputName("", jpg))
	assert.Equal(t, "photo.jpeg", OutputName("photo.png", ParseTarget("JPEG")))
	assert.Equal(t, "photo.xyz123", OutputName("photo.png", ParseTarget("xyz123")))
	assert.Equal(t, "sprites_png.zip", ArchiveOutputName("sprites.zip", png))
	assert.Equal(t, "archive_jpg.zip", ArchiveOutputName("", jpg))

	assert.True(t, IsArchiveName("pack.ZIP"))
	assert.False(t, IsArchiveName("pack.zip.png"))
}
