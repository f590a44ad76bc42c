package convert

import (
	"bytes"
	"fmt"

	"imgconv-server-go/internal/platform/errors"
	"imgconv-server-go/internal/utils"
)

// Limits 限制单个图像载荷的大小与尺寸，0 表示不限制。
type Limits struct {
	MaxFileSize int64
	MaxPixels   int64
	MaxWidth    int
	MaxHeight   int
}

// SecurityValidator 在解码前后检查载荷，拒绝超限或可疑的数据。
type SecurityValidator struct {
	limits Limits
	logger *utils.Logger
}

func NewSecurityValidator(limits Limits, logger *utils.Logger) *SecurityValidator {
	return &SecurityValidator{limits: limits, logger: logger}
}

var suspiciousSignatures = [][]byte{
	{0x4D, 0x5A},             // PE 可执行文件
	{0x7F, 'E', 'L', 'F'},    // ELF
	{0x25, 0x50, 0x44, 0x46}, // PDF
	{0x50, 0x4B, 0x03, 0x04}, // 嵌套 zip
	{0x1F, 0x8B, 0x08},       // gzip
}

// CheckBytes 检查原始载荷大小与已知的非图像签名。
func (v *SecurityValidator) CheckBytes(data []byte) error {
	if v == nil {
		return nil
	}
	if v.limits.MaxFileSize > 0 && int64(len(data)) > v.limits.MaxFileSize {
		v.logger.WarnTag("转换", "detected oversized image: size=%d max_size=%d", len(data), v.limits.MaxFileSize)
		return errors.Newf(errors.KindDecode, "validate",
			"file size exceeds limit: %d bytes (max %d bytes)", len(data), v.limits.MaxFileSize)
	}
	for _, sig := range suspiciousSignatures {
		if bytes.HasPrefix(data, sig) {
			v.logger.WarnTag("转换", "detected non-image signature: signature_hex=%x", sig)
			return errors.Newf(errors.KindDecode, "validate", "payload is not an image (signature %x)", sig)
		}
	}
	return nil
}

// CheckBounds 检查宽高与像素总数。
func (v *SecurityValidator) CheckBounds(width, height int) error {
	if v == nil {
		return nil
	}
	if (v.limits.MaxWidth > 0 && width > v.limits.MaxWidth) ||
		(v.limits.MaxHeight > 0 && height > v.limits.MaxHeight) {
		return errors.Newf(errors.KindDecode, "validate", "dimensions exceed limit: %dx%d (max %dx%d)",
			width, height, v.limits.MaxWidth, v.limits.MaxHeight)
	}
	total := int64(width) * int64(height)
	if v.limits.MaxPixels > 0 && total > v.limits.MaxPixels {
		return errors.Newf(errors.KindDecode, "validate", "pixel count exceeds limit: %d (max %d)", total, v.limits.MaxPixels)
	}
	return nil
}

// CheckHeader 在完整解码前通过文件头读取尺寸，格式不支持廉价读取时跳过。
func (v *SecurityValidator) CheckHeader(data []byte) error {
	if v == nil {
		return nil
	}
	cfg, ok := DecodeConfig(data)
	if !ok {
		return nil
	}
	if err := v.CheckBounds(cfg.Width, cfg.Height); err != nil {
		v.logger.WarnTag("转换", "rejected image before decode: %v", err)
		return err
	}
	return nil
}

func (v *SecurityValidator) maxFileSize() int64 {
	if v == nil {
		return 0
	}
	return v.limits.MaxFileSize
}

func (l Limits) String() string {
	return fmt.Sprintf("size<=%d pixels<=%d %dx%d", l.MaxFileSize, l.MaxPixels, l.MaxWidth, l.MaxHeight)
}
