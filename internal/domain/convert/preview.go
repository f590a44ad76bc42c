package convert

import (
	"context"

	"github.com/disintegration/imaging"

	"imgconv-server-go/internal/platform/errors"
	"imgconv-server-go/internal/platform/observability"
)

// Preview 生成不超过 previewSize 见方的 PNG 缩略图，只缩小不放大。
func (c *Converter) Preview(ctx context.Context, data []byte) ([]byte, error) {
	_, end := observability.StartSpan(ctx, "convert", "preview")

	buf, err := c.decode(data)
	if err != nil {
		end(err)
		return nil, err
	}
	if buf.Orientation > 1 {
		buf = AutoOrient(buf)
	}
	if !buf.HasAlpha() {
		if buf, err = toRGB(buf); err != nil {
			end(err)
			return nil, err
		}
	}

	img := buf.Image
	if buf.Width > c.previewSize || buf.Height > c.previewSize {
		img = imaging.Fit(img, c.previewSize, c.previewSize, imaging.Lanczos)
	} else if buf.HasAlpha() {
		img = imaging.Clone(img)
	}

	out, err := encodePNGBytes(img)
	if err != nil {
		err = errors.Wrap(errors.KindEncode, "preview", "encode preview", err)
		end(err)
		return nil, err
	}
	end(nil)
	return out, nil
}
