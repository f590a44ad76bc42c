package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"gopkg.in/gographics/imagick.v2/imagick"

	"imgconv-server-go/internal/platform/errors"
)

// libvips 与 ImageMagick 均为进程级单例，首次使用时初始化。
var (
	vipsOnce    sync.Once
	magickOnce  sync.Once
	nativeMu    sync.Mutex
	vipsReady   bool
	magickReady bool
)

func ensureVips() {
	vipsOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelError)
		vips.Startup(nil)
		nativeMu.Lock()
		vipsReady = true
		nativeMu.Unlock()
	})
}

func ensureMagick() {
	magickOnce.Do(func() {
		imagick.Initialize()
		nativeMu.Lock()
		magickReady = true
		nativeMu.Unlock()
	})
}

// ShutdownCodecs 释放 libvips 与 ImageMagick 占用的资源，进程退出前调用一次。
func ShutdownCodecs() {
	nativeMu.Lock()
	defer nativeMu.Unlock()
	if vipsReady {
		vips.Shutdown()
		vipsReady = false
	}
	if magickReady {
		imagick.Terminate()
		magickReady = false
	}
}

func encodePNGBytes(img image.Image) ([]byte, error) {
	var b bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&b, img); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// encodeJPEG 通过 libvips 输出质量 95、关闭色度抽样（4:4:4）的 JPEG。
func encodeJPEG(w io.Writer, buf *Buffer, _ Target) error {
	ensureVips()

	src, err := encodePNGBytes(buf.Image)
	if err != nil {
		return err
	}
	ref, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	params := vips.NewJpegExportParams()
	params.Quality = jpegQuality
	params.SubsampleMode = vips.VipsForeignSubsampleOff
	params.StripMetadata = true

	out, _, err := ref.ExportJpeg(params)
	if err != nil {
		return fmt.Errorf("vips export jpeg: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// magickDecode 借助 ImageMagick 尽力解码 DDS、PSD 等容器，取第一帧（PSD 的合成图）。
func magickDecode(r io.Reader) (image.Image, error) {
	ensureMagick()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	mw := imagick.NewMagickWand()
	defer mw.Destroy()
	if err := mw.ReadImageBlob(data); err != nil {
		return nil, fmt.Errorf("magick read: %w", err)
	}
	mw.SetFirstIterator()
	first := mw.GetImage()
	defer first.Destroy()

	if err := first.SetImageFormat("PNG"); err != nil {
		return nil, fmt.Errorf("magick set format: %w", err)
	}
	blob := first.GetImageBlob()
	if len(blob) == 0 {
		return nil, fmt.Errorf("magick produced empty png")
	}
	return png.Decode(bytes.NewReader(blob))
}

// magickConfig 用 PingImageBlob 读取尺寸，不解码像素。
func magickConfig(data []byte) (image.Config, error) {
	ensureMagick()

	mw := imagick.NewMagickWand()
	defer mw.Destroy()
	if err := mw.PingImageBlob(data); err != nil {
		return image.Config{}, fmt.Errorf("magick ping: %w", err)
	}
	return image.Config{Width: int(mw.GetImageWidth()), Height: int(mw.GetImageHeight())}, nil
}

// encodeGeneric 以格式名交给 ImageMagick 编码，ImageMagick 不认识的格式返回 KindUnsupported。
func encodeGeneric(w io.Writer, buf *Buffer, t Target) error {
	if t.Name == "" {
		return errors.New(errors.KindUnsupported, "encode", "empty target format")
	}
	ensureMagick()

	src, err := encodePNGBytes(buf.Image)
	if err != nil {
		return err
	}

	mw := imagick.NewMagickWand()
	defer mw.Destroy()
	if err := mw.ReadImageBlob(src); err != nil {
		return fmt.Errorf("magick read: %w", err)
	}
	if err := mw.SetImageFormat(strings.ToUpper(t.Name)); err != nil {
		return errors.Wrap(errors.KindUnsupported, "encode", fmt.Sprintf("unsupported target format %q", t.Name), err)
	}
	blob := mw.GetImageBlob()
	if len(blob) == 0 {
		return errors.Newf(errors.KindUnsupported, "encode", "unsupported target format %q", t.Name)
	}
	_, err = w.Write(blob)
	return err
}
