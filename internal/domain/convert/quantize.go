package convert

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	goquantize "github.com/ericpauley/go-quantize/quantize"
)

const maxPaletteSize = 256

// MedianCut 是自适应调色板量化器，实现 draw.Quantizer。
// 颜色数不超过调色板容量时直接使用原有颜色，否则交给 go-quantize 按中位切分生成调色板。
type MedianCut struct{}

var _ draw.Quantizer = MedianCut{}

// Quantize 向 p 追加最多 cap(p)-len(p) 个颜色（cap 为 0 时按 256 计）。
func (MedianCut) Quantize(p color.Palette, m image.Image) color.Palette {
	limit := cap(p) - len(p)
	if cap(p) == 0 {
		limit = maxPaletteSize
	}
	if limit <= 0 {
		return p
	}

	if exact := distinctColors(m, limit); exact != nil {
		return append(p, exact...)
	}
	q := goquantize.MedianCutQuantizer{Aggregation: goquantize.Mean}
	return append(p, q.Quantize(make(color.Palette, 0, limit), m)...)
}

// distinctColors 在颜色数不超过 limit 时返回排好序的全部颜色，否则返回 nil。
func distinctColors(m image.Image, limit int) color.Palette {
	seen := make(map[uint32]struct{}, limit+1)
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := m.At(x, y).RGBA()
			seen[(r>>8)<<16|(g>>8)<<8|bl>>8] = struct{}{}
			if len(seen) > limit {
				return nil
			}
		}
	}

	keys := make([]uint32, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	// 保证结果与 map 遍历顺序无关
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	pal := make(color.Palette, len(keys))
	for i, k := range keys {
		pal[i] = color.RGBA{R: uint8(k >> 16), G: uint8(k >> 8), B: uint8(k), A: 0xff}
	}
	return pal
}

// quantize 把不透明图像映射到自适应调色板，逐像素取最近色，不做抖动。
func quantize(img image.Image) *image.Paletted {
	b := img.Bounds()
	pal := MedianCut{}.Quantize(make(color.Palette, 0, maxPaletteSize), img)
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), pal)

	lookup := make(map[uint32]uint8, len(pal))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			key := (r>>8)<<16 | (g>>8)<<8 | bl>>8
			idx, ok := lookup[key]
			if !ok {
				idx = uint8(pal.Index(color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 0xff}))
				lookup[key] = idx
			}
			dst.SetColorIndex(x-b.Min.X, y-b.Min.Y, idx)
		}
	}
	return dst
}
