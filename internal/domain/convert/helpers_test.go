package convert

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"imgconv-server-go/internal/utils"
)

type zipFile struct {
	name string
	data []byte
}

// gradient 生成颜色数量可控的不透明 RGBA 图像。
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / max(w-1, 1)), G: uint8(y * 255 / max(h-1, 1)), B: 128, A: 255})
		}
	}
	return img
}

func translucent(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: uint8(x * 10), B: 30, A: uint8(y * 20)})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var b bytes.Buffer
	require.NoError(t, png.Encode(&b, img))
	return b.Bytes()
}

func zipBytes(t *testing.T, files ...zipFile) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return b.Bytes()
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

type recordedEvent struct {
	topic string
	event Event
}

type recordingPublisher struct {
	events []recordedEvent
}

func (p *recordingPublisher) Publish(topic string, args ...interface{}) {
	ev, _ := args[0].(Event)
	p.events = append(p.events, recordedEvent{topic: topic, event: ev})
}

func newTestConverter(opts Options) *Converter {
	if opts.Logger == nil {
		opts.Logger = utils.NewWriterLogger(&bytes.Buffer{}, "error")
	}
	return NewConverter(opts)
}

func samePixels(t *testing.T, a, b image.Image) {
	t.Helper()
	require.Equal(t, a.Bounds().Size(), b.Bounds().Size())
	ab, bb := a.Bounds(), b.Bounds()
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			ca := color.NRGBAModel.Convert(a.At(ab.Min.X+x, ab.Min.Y+y))
			cb := color.NRGBAModel.Convert(b.At(bb.Min.X+x, bb.Min.Y+y))
			require.Equal(t, ca, cb, "pixel (%d,%d)", x, y)
		}
	}
}
