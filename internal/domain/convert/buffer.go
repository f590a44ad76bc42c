package convert

import (
	"image"
	"image/color"
)

// ColorMode 标记像素缓冲区的颜色模式。
type ColorMode int

const (
	ModeGray ColorMode = iota
	ModeRGB
	ModeRGBA
	ModeIndexed
)

func (m ColorMode) String() string {
	switch m {
	case ModeGray:
		return "gray"
	case ModeRGB:
		return "rgb"
	case ModeRGBA:
		return "rgba"
	case ModeIndexed:
		return "indexed"
	default:
		return "unknown"
	}
}

// Buffer 是解码后的像素数据及其颜色模式。每个阶段返回新的 Buffer，不修改输入。
type Buffer struct {
	Image  image.Image
	Mode   ColorMode
	Width  int
	Height int

	// TransparentIndex 表示调色板中存在 alpha < 255 的颜色，仅对 ModeIndexed 有意义。
	TransparentIndex bool
	// Orientation 为 EXIF 方向标记（1-8），0 表示没有。
	Orientation int
}

// NewBuffer 根据具体图像类型和不透明度推断颜色模式。
func NewBuffer(img image.Image) *Buffer {
	b := img.Bounds()
	buf := &Buffer{Image: img, Width: b.Dx(), Height: b.Dy()}

	switch m := img.(type) {
	case *image.Paletted:
		buf.Mode = ModeIndexed
		buf.TransparentIndex = paletteHasAlpha(m.Palette)
	case *image.Gray, *image.Gray16:
		buf.Mode = ModeGray
	case *image.YCbCr, *image.CMYK:
		buf.Mode = ModeRGB
	default:
		if isOpaque(img) {
			buf.Mode = ModeRGB
		} else {
			buf.Mode = ModeRGBA
		}
	}
	return buf
}

// HasAlpha 报告缓冲区是否携带透明信息（alpha 通道或透明调色板项）。
func (b *Buffer) HasAlpha() bool {
	return b.Mode == ModeRGBA || (b.Mode == ModeIndexed && b.TransparentIndex)
}

func (b *Buffer) derive(img image.Image) *Buffer {
	out := NewBuffer(img)
	out.Orientation = b.Orientation
	return out
}

func paletteHasAlpha(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return true
		}
	}
	return false
}

type opaquer interface {
	Opaque() bool
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(opaquer); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}
