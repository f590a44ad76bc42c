package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"imgconv-server-go/internal/platform/errors"
)

// policy 描述一种目标格式：编码前的颜色模式转换（策略）与编码本身（机制）。
type policy struct {
	mime    string
	coerce  func(*Buffer) (*Buffer, error)
	accepts func(ColorMode) bool
	encode  func(io.Writer, *Buffer, Target) error
}

func anyMode(ColorMode) bool { return true }

func only(modes ...ColorMode) func(ColorMode) bool {
	return func(m ColorMode) bool {
		for _, allowed := range modes {
			if m == allowed {
				return true
			}
		}
		return false
	}
}

func keepMode(b *Buffer) (*Buffer, error) { return b, nil }

var policies = [formatCount]policy{
	FormatUnknown: {mime: mimeOctetStream, coerce: toRGB, accepts: only(ModeRGB), encode: encodeGeneric},
	FormatPNG:     {mime: "image/png", coerce: keepMode, accepts: anyMode, encode: encodePNG},
	FormatBMP:     {mime: "image/bmp", coerce: toIndexed, accepts: only(ModeIndexed), encode: encodeBMP},
	FormatJPEG:    {mime: "image/jpeg", coerce: toRGB, accepts: only(ModeRGB), encode: encodeJPEG},
	FormatWEBP:    {mime: "image/webp", coerce: keepMode, accepts: anyMode, encode: encodeWEBP},
	FormatTGA:     {mime: "image/x-tga", coerce: keepMode, accepts: anyMode, encode: encodeTGA},
	FormatICO:     {mime: "image/x-icon", coerce: keepMode, accepts: anyMode, encode: encodeICO},
	FormatTIFF:    {mime: "image/tiff", coerce: keepMode, accepts: anyMode, encode: encodeTIFF},
	FormatGIF:     {mime: "image/gif", coerce: toRGB, accepts: only(ModeRGB), encode: encodeGIF},
}

func init() {
	for f := Format(0); f < formatCount; f++ {
		p := policies[f]
		if p.mime == "" || p.coerce == nil || p.accepts == nil || p.encode == nil {
			panic(fmt.Sprintf("convert: incomplete policy for format %d", f))
		}
	}
}

func policyFor(f Format) policy {
	if f < 0 || f >= formatCount {
		f = FormatUnknown
	}
	return policies[f]
}

// Prepare 按目标格式的策略转换颜色模式，保证返回的 Buffer 满足编码前置条件。
func Prepare(buf *Buffer, t Target) (*Buffer, error) {
	p := policyFor(t.Format)
	out, err := p.coerce(buf)
	if err != nil {
		return nil, errors.Wrap(errors.KindEncode, "prepare", fmt.Sprintf("failed to coerce %s image for %s", buf.Mode, t.Ext()), err)
	}
	if !p.accepts(out.Mode) {
		return nil, errors.Newf(errors.KindEncode, "prepare", "color mode %s not accepted by %s", out.Mode, t.Ext())
	}
	return out, nil
}

// Encode 把已满足策略前置条件的 Buffer 编码为目标格式。
func Encode(buf *Buffer, t Target) ([]byte, error) {
	p := policyFor(t.Format)
	if !p.accepts(buf.Mode) {
		return nil, errors.Newf(errors.KindEncode, "encode", "color mode %s not accepted by %s", buf.Mode, t.Ext())
	}

	var out bytes.Buffer
	if err := safeEncode(p.encode, &out, buf, t); err != nil {
		if errors.IsKind(err, errors.KindUnsupported) {
			return nil, err
		}
		return nil, errors.Wrap(errors.KindEncode, "encode", fmt.Sprintf("failed to encode %s", t.Ext()), err)
	}
	return out.Bytes(), nil
}

func safeEncode(fn func(io.Writer, *Buffer, Target) error, w io.Writer, buf *Buffer, t Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encoder panic: %v", r)
		}
	}()
	return fn(w, buf, t)
}

// toRGB 把透明像素合成到白色背景上，得到不透明的 RGB 图像；已是 RGB 时原样返回。
func toRGB(b *Buffer) (*Buffer, error) {
	if b.Mode == ModeRGB {
		return b, nil
	}
	bounds := b.Image.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), b.Image, bounds.Min, draw.Over)

	out := &Buffer{
		Image:       dst,
		Mode:        ModeRGB,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Orientation: b.Orientation,
	}
	return out, nil
}

// toIndexed 先去除透明，再量化为不超过 256 色的自适应调色板，不做抖动。
func toIndexed(b *Buffer) (*Buffer, error) {
	if b.Mode == ModeIndexed && !b.TransparentIndex {
		if p, ok := b.Image.(*image.Paletted); ok && len(p.Palette) <= maxPaletteSize {
			return b, nil
		}
	}
	rgb, err := toRGB(b)
	if err != nil {
		return nil, err
	}
	out := &Buffer{
		Image:       quantize(rgb.Image),
		Mode:        ModeIndexed,
		Width:       rgb.Width,
		Height:      rgb.Height,
		Orientation: b.Orientation,
	}
	return out, nil
}
