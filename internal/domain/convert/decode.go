package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	ico "github.com/biessek/golang-ico"
	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"imgconv-server-go/internal/platform/errors"
)

type decodeFunc func(io.Reader) (image.Image, error)

type signature struct {
	name   string
	magic  []byte
	offset int
}

// 魔数按检测顺序排列；TGA 没有魔数，作为最后的兜底。
var signatures = []signature{
	{name: "png", magic: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	{name: "jpeg", magic: []byte{0xFF, 0xD8, 0xFF}},
	{name: "gif", magic: []byte("GIF8")},
	{name: "webp", magic: []byte("WEBP"), offset: 8},
	{name: "tiff", magic: []byte{'I', 'I', 0x2A, 0x00}},
	{name: "tiff", magic: []byte{'M', 'M', 0x00, 0x2A}},
	{name: "ico", magic: []byte{0x00, 0x00, 0x01, 0x00}},
	{name: "dds", magic: []byte("DDS ")},
	{name: "psd", magic: []byte("8BPS")},
	{name: "bmp", magic: []byte("BM")},
}

var decoders = map[string]decodeFunc{
	"png":  png.Decode,
	"jpeg": jpeg.Decode,
	"gif":  gif.Decode,
	"webp": webp.Decode,
	"tiff": tiff.Decode,
	"ico":  ico.Decode,
	"bmp":  bmp.Decode,
	"tga":  tga.Decode,
	"dds":  magickDecode,
	"psd":  magickDecode,
}

// Sniff 根据魔数识别源格式，无法识别时返回空串。
func Sniff(data []byte) string {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(data) < end {
			continue
		}
		if sig.name == "webp" && !bytes.HasPrefix(data, []byte("RIFF")) {
			continue
		}
		if bytes.Equal(data[sig.offset:end], sig.magic) {
			return sig.name
		}
	}
	return ""
}

// Decode 将任意受支持的编码图像解码为 Buffer。失败一律返回 KindDecode 错误，不会 panic。
func Decode(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.KindDecode, "decode", "empty image payload")
	}

	source := Sniff(data)
	if source == "" {
		source = "tga"
	}

	img, err := safeDecode(decoders[source], data)
	if err != nil {
		if source == "tga" {
			return nil, errors.Wrap(errors.KindDecode, "decode", "unrecognized image data", err)
		}
		return nil, errors.Wrap(errors.KindDecode, "decode", fmt.Sprintf("failed to decode %s", source), err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.Newf(errors.KindDecode, "decode", "invalid dimensions %dx%d", b.Dx(), b.Dy())
	}

	buf := NewBuffer(img)
	switch source {
	case "jpeg", "tiff", "webp", "png":
		buf.Orientation = ReadOrientation(data)
	}
	return buf, nil
}

// DecodeConfig 在不解码像素的情况下读取尺寸。无法识别魔数的数据按 TGA 读取文件头，
// DDS/PSD 交给 ImageMagick 只读头信息。读不出尺寸时返回 ok=false。
func DecodeConfig(data []byte) (cfg image.Config, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	var err error
	r := bytes.NewReader(data)
	switch Sniff(data) {
	case "png":
		cfg, err = png.DecodeConfig(r)
	case "jpeg":
		cfg, err = jpeg.DecodeConfig(r)
	case "gif":
		cfg, err = gif.DecodeConfig(r)
	case "webp":
		cfg, err = webp.DecodeConfig(r)
	case "tiff":
		cfg, err = tiff.DecodeConfig(r)
	case "bmp":
		cfg, err = bmp.DecodeConfig(r)
	case "ico":
		cfg, err = ico.DecodeConfig(r)
	case "dds", "psd":
		cfg, err = magickConfig(data)
	case "":
		cfg, err = tga.DecodeConfig(r)
	default:
		return image.Config{}, false
	}
	return cfg, err == nil
}

func safeDecode(fn decodeFunc, data []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return fn(bytes.NewReader(data))
}

// ReadOrientation 读取 EXIF Orientation 标记，缺失或损坏时返回 0。
func ReadOrientation(data []byte) (orientation int) {
	defer func() {
		if recover() != nil {
			orientation = 0
		}
	}()

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return 0
	}

	im := exifcommon.NewIfdMapping()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return 0
	}
	ti := exif.NewTagIndex()
	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		return 0
	}

	tags, err := index.RootIfd.FindTagWithName("Orientation")
	if err != nil || len(tags) == 0 {
		return 0
	}
	val, err := tags[0].Value()
	if err != nil {
		return 0
	}
	switch v := val.(type) {
	case []uint16:
		if len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
			return int(v[0])
		}
	case uint16:
		if v >= 1 && v <= 8 {
			return int(v)
		}
	}
	return 0
}
