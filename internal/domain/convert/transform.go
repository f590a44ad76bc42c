package convert

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Resize 使用 Lanczos 重采样缩放到指定宽高；任一维度缺失或非正时原样返回。
func Resize(buf *Buffer, width, height int) *Buffer {
	if width <= 0 || height <= 0 {
		return buf
	}
	if width == buf.Width && height == buf.Height {
		return buf
	}
	resized := imaging.Resize(buf.Image, width, height, imaging.Lanczos)
	if buf.Mode == ModeGray {
		return buf.derive(toGray(resized))
	}
	return buf.derive(resized)
}

// AdjustTone 依次应用亮度、对比度、饱和度系数。系数为 1.0 的步骤直接跳过。
// 每个系数都是围绕中性值 1.0 的乘法缩放，alpha 保持不变。
func AdjustTone(buf *Buffer, brightness, contrast, saturation float64) *Buffer {
	img := buf.Image
	changed := false

	if brightness != 1.0 {
		img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clamp8(float64(c.R) * brightness),
				G: clamp8(float64(c.G) * brightness),
				B: clamp8(float64(c.B) * brightness),
				A: c.A,
			}
		})
		changed = true
	}

	if contrast != 1.0 {
		mean := meanLuma(img)
		img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clamp8(mean + contrast*(float64(c.R)-mean)),
				G: clamp8(mean + contrast*(float64(c.G)-mean)),
				B: clamp8(mean + contrast*(float64(c.B)-mean)),
				A: c.A,
			}
		})
		changed = true
	}

	if saturation != 1.0 {
		img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			gray := luma(c)
			return color.NRGBA{
				R: clamp8(gray + saturation*(float64(c.R)-gray)),
				G: clamp8(gray + saturation*(float64(c.G)-gray)),
				B: clamp8(gray + saturation*(float64(c.B)-gray)),
				A: c.A,
			}
		})
		changed = true
	}

	if !changed {
		return buf
	}
	if buf.Mode == ModeGray {
		return buf.derive(toGray(img))
	}
	return buf.derive(img)
}

// AutoOrient 按 EXIF Orientation 旋转或翻转图像，并清除方向标记。
func AutoOrient(buf *Buffer) *Buffer {
	var img image.Image
	switch buf.Orientation {
	case 2:
		img = imaging.FlipH(buf.Image)
	case 3:
		img = imaging.Rotate180(buf.Image)
	case 4:
		img = imaging.FlipV(buf.Image)
	case 5:
		img = imaging.Transpose(buf.Image)
	case 6:
		img = imaging.Rotate270(buf.Image)
	case 7:
		img = imaging.Transverse(buf.Image)
	case 8:
		img = imaging.Rotate90(buf.Image)
	default:
		return buf
	}
	out := buf.derive(img)
	if buf.Mode == ModeGray {
		out = buf.derive(toGray(img))
	}
	out.Orientation = 0
	return out
}

func luma(c color.NRGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

func meanLuma(img image.Image) float64 {
	src := imaging.Clone(img)
	b := src.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+3 < len(src.Pix); i += 4 {
		sum += luma(color.NRGBA{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2]})
	}
	return sum / float64(n)
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return dst
}
