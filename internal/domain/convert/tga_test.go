package convert

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTGA_RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		img        image.Image
		depth      byte
		descriptor byte
	}{
		{"opaque", gradient(33, 7), 24, 0x20},
		{"alpha", translucent(9, 12), 32, 0x28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, encodeTGA(&out, NewBuffer(tt.img), ParseTarget("tga")))

			data := out.Bytes()
			assert.Equal(t, byte(tgaTypeRLETrueColor), data[2])
			assert.Equal(t, tt.depth, data[16])
			assert.Equal(t, tt.descriptor, data[17], "top-left origin")
			assert.True(t, bytes.HasSuffix(data, tgaFooterSignature))

			decoded, err := tga.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			samePixels(t, tt.img, decoded)
		})
	}
}

func TestWriteRLERow_LongRunsSplit(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 300, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 300; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var out bytes.Buffer
	require.NoError(t, encodeTGA(&out, NewBuffer(img), ParseTarget("tga")))

	// 每行 300 像素拆成 128+128+44 三个行程包
	assert.Equal(t, 18+2*3*(1+3)+26, out.Len())

	decoded, err := tga.Decode(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	samePixels(t, img, decoded)
}
