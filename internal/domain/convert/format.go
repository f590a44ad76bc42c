package convert

import (
	"path"
	"strings"
)

// Format 是受支持目标格式的封闭枚举。
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatBMP
	FormatJPEG
	FormatWEBP
	FormatTGA
	FormatICO
	FormatTIFF
	FormatGIF

	formatCount
)

const mimeOctetStream = "application/octet-stream"

var formatNames = [formatCount]string{
	FormatUnknown: "",
	FormatPNG:     "png",
	FormatBMP:     "bmp",
	FormatJPEG:    "jpeg",
	FormatWEBP:    "webp",
	FormatTGA:     "tga",
	FormatICO:     "ico",
	FormatTIFF:    "tiff",
	FormatGIF:     "gif",
}

var formatAliases = map[string]Format{
	"png":  FormatPNG,
	"bmp":  FormatBMP,
	"jpg":  FormatJPEG,
	"jpeg": FormatJPEG,
	"webp": FormatWEBP,
	"tga":  FormatTGA,
	"ico":  FormatICO,
	"tiff": FormatTIFF,
	"tif":  FormatTIFF,
	"gif":  FormatGIF,
}

func (f Format) String() string {
	if f <= FormatUnknown || f >= formatCount {
		return "unknown"
	}
	return formatNames[f]
}

// Formats 返回全部已知目标格式（不含 FormatUnknown）。
func Formats() []Format {
	out := make([]Format, 0, formatCount-1)
	for f := FormatPNG; f < formatCount; f++ {
		out = append(out, f)
	}
	return out
}

// Target 是规范化后的目标格式：Name 为小写的请求名，Format 为其枚举值。
type Target struct {
	Format Format
	Name   string
}

// ParseTarget 不区分大小写地解析目标格式，允许前导点号。
// 未知名称得到 FormatUnknown，并保留名称以便走通用编码路径。
func ParseTarget(name string) Target {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, ".")
	return Target{Format: formatAliases[n], Name: n}
}

// Ext 返回输出文件扩展名（不含点号），沿用请求中的写法，例如 jpg 或 jpeg。
func (t Target) Ext() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Format.String()
}

// MIME 返回目标格式的 MIME 类型。
func (t Target) MIME() string {
	return policyFor(t.Format).mime
}

// MIMEType 按固定表返回 MIME 类型，键不区分大小写，未知格式返回 application/octet-stream。
func MIMEType(name string) string {
	return ParseTarget(name).MIME()
}

// Stem 返回去掉目录和扩展名的文件名主体。
func Stem(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	if ext := path.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// OutputName 生成单张输出文件名 <stem>.<ext>。
func OutputName(source string, t Target) string {
	stem := Stem(source)
	if stem == "" {
		stem = "image"
	}
	return stem + "." + t.Ext()
}

// ArchiveOutputName 生成批量输出压缩包名 <stem>_<format>.zip。
func ArchiveOutputName(source string, t Target) string {
	stem := Stem(source)
	if stem == "" {
		stem = "archive"
	}
	return stem + "_" + t.Ext() + ".zip"
}

// IsArchiveName 仅根据后缀（不区分大小写）判断是否为 zip 压缩包。
func IsArchiveName(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".zip")
}
