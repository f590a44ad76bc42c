package convert

import (
	"context"
	"fmt"
	"time"

	"imgconv-server-go/internal/platform/errors"
	"imgconv-server-go/internal/platform/observability"
	"imgconv-server-go/internal/utils"
)

// Request 是一次转换的参数。亮度、对比度、饱和度为乘法系数，1.0 表示不变。
type Request struct {
	Target     Target
	Width      int
	Height     int
	Brightness float64
	Contrast   float64
	Saturation float64
	Orient     bool
}

// NewRequest 返回目标格式为 format、其余参数均为中性值的请求。
func NewRequest(format string) Request {
	return Request{
		Target:     ParseTarget(format),
		Brightness: 1.0,
		Contrast:   1.0,
		Saturation: 1.0,
	}
}

// Options 配置 Converter。
type Options struct {
	Logger            *utils.Logger
	Publisher         Publisher
	Limits            Limits
	ArchiveAllowGIF   bool
	MaxArchiveEntries int
	PreviewSize       int
}

// Converter 串行执行 解码 -> 变换 -> 策略 -> 编码。不同请求之间不共享可变状态，可并发使用。
type Converter struct {
	logger      *utils.Logger
	publisher   Publisher
	validator   *SecurityValidator
	allowGIF    bool
	maxEntries  int
	previewSize int
}

func NewConverter(opts Options) *Converter {
	if opts.Logger == nil {
		opts.Logger = utils.DefaultLogger
	}
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = 500
	}
	return &Converter{
		logger:      opts.Logger,
		publisher:   opts.Publisher,
		validator:   NewSecurityValidator(opts.Limits, opts.Logger),
		allowGIF:    opts.ArchiveAllowGIF,
		maxEntries:  opts.MaxArchiveEntries,
		previewSize: opts.PreviewSize,
	}
}

// ConvertOne 转换单张图像。失败不会返回错误，而是得到带原因的 Failed 结果。
func (c *Converter) ConvertOne(ctx context.Context, data []byte, name string, req Request) Outcome {
	ctx, end := observability.StartSpan(ctx, "convert", "one")
	start := time.Now()

	out, err := c.convertBytes(data, req)
	elapsed := time.Since(start)
	if err != nil {
		end(err)
		c.logger.WarnTag("转换", "%s -> %s failed: %v", name, req.Target.Ext(), err)
		observability.RecordMetric(ctx, "convert.failed", 1, map[string]string{"kind": string(errors.KindOf(err))})
		c.publish(TopicFailed, Event{
			Source:   name,
			Format:   eventFormat(req.Target),
			Kind:     errors.KindOf(err),
			Reason:   err.Error(),
			Duration: elapsed,
		})
		return Fail(err)
	}
	end(nil)

	outName := OutputName(name, req.Target)
	c.logger.DebugTag("转换", "%s -> %s (%d bytes, %s)", name, outName, len(out), elapsed)
	observability.RecordMetric(ctx, "convert.output_bytes", float64(len(out)), map[string]string{"format": eventFormat(req.Target)})
	c.publish(TopicCompleted, Event{
		Source:   name,
		Output:   outName,
		Format:   eventFormat(req.Target),
		Bytes:    len(out),
		Duration: elapsed,
	})
	return Succeed(out, outName, req.Target.MIME())
}

// eventFormat 返回事件与指标使用的格式名，jpg/jpeg 归为同一个桶。
func eventFormat(t Target) string {
	if t.Format == FormatUnknown {
		return t.Name
	}
	return t.Format.String()
}

// Convert 仅根据扩展名（.zip）选择批量模式或单图模式。
// 批量模式下返回的 *BatchResult 非空，压缩包本身作为成功结果的字节。
func (c *Converter) Convert(ctx context.Context, data []byte, name string, req Request) (Outcome, *BatchResult) {
	if !IsArchiveName(name) {
		return c.ConvertOne(ctx, data, name, req), nil
	}
	result, err := c.ConvertArchive(ctx, data, name, req)
	if err != nil {
		return Fail(err), nil
	}
	return Succeed(result.Archive, result.Name, mimeZip), result
}

func (c *Converter) convertBytes(data []byte, req Request) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errors.Newf(errors.KindEncode, "convert", "conversion panic: %v", r)
		}
	}()

	buf, err := c.decode(data)
	if err != nil {
		return nil, err
	}
	if req.Orient {
		buf = AutoOrient(buf)
	}
	buf = Resize(buf, req.Width, req.Height)
	buf = AdjustTone(buf, req.Brightness, req.Contrast, req.Saturation)

	buf, err = Prepare(buf, req.Target)
	if err != nil {
		return nil, err
	}
	return Encode(buf, req.Target)
}

func (c *Converter) decode(data []byte) (*Buffer, error) {
	if err := c.validator.CheckBytes(data); err != nil {
		return nil, err
	}
	if err := c.validator.CheckHeader(data); err != nil {
		return nil, err
	}
	buf, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := c.validator.CheckBounds(buf.Width, buf.Height); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *Converter) publish(topic string, ev Event) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(topic, ev)
}

func (r Request) String() string {
	return fmt.Sprintf("format=%s size=%dx%d tone=%.2f/%.2f/%.2f orient=%t",
		r.Target.Ext(), r.Width, r.Height, r.Brightness, r.Contrast, r.Saturation, r.Orient)
}
