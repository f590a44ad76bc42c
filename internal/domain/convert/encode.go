package convert

import (
	"image"
	"image/draw"
	"image/gif"
	"image/png"
	"io"

	ico "github.com/biessek/golang-ico"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

const (
	jpegQuality = 95
	webpQuality = 95
	icoMaxSize  = 256
)

func encodePNG(w io.Writer, buf *Buffer, _ Target) error {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	return enc.Encode(w, buf.Image)
}

// encodeBMP 写出 8 位调色板 BMP，输入必须是 *image.Paletted。
func encodeBMP(w io.Writer, buf *Buffer, _ Target) error {
	return bmp.Encode(w, buf.Image)
}

func encodeWEBP(w io.Writer, buf *Buffer, _ Target) error {
	img := buf.Image
	switch img.(type) {
	case *image.Gray, *image.RGBA, *image.NRGBA:
	default:
		img = imaging.Clone(img)
	}
	return webp.Encode(w, img, &webp.Options{Quality: webpQuality})
}

// encodeICO 写出单一尺寸的图标，超过 256 像素的边按比例缩小。
func encodeICO(w io.Writer, buf *Buffer, _ Target) error {
	img := buf.Image
	if buf.Width > icoMaxSize || buf.Height > icoMaxSize {
		img = imaging.Fit(img, icoMaxSize, icoMaxSize, imaging.Lanczos)
	}
	return ico.Encode(w, img)
}

func encodeTIFF(w io.Writer, buf *Buffer, _ Target) error {
	return tiff.Encode(w, buf.Image, &tiff.Options{Compression: tiff.Deflate})
}

func encodeGIF(w io.Writer, buf *Buffer, _ Target) error {
	return gif.Encode(w, buf.Image, &gif.Options{
		NumColors: maxPaletteSize,
		Quantizer: MedianCut{},
		Drawer:    draw.Src,
	})
}
