package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"imgconv-server-go/internal/platform/errors"
	"imgconv-server-go/internal/platform/observability"
)

const mimeZip = "application/zip"

// 批量模式下允许的源文件扩展名。gif 由配置决定。
var archiveExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "webp": {}, "bmp": {}, "tga": {},
	"dds": {}, "psd": {}, "tiff": {}, "tif": {}, "ico": {},
}

// ArchiveEntry 是压缩包中的一个文件，内容在转换时才解压。
type ArchiveEntry struct {
	Name     string
	Eligible bool
	file     *zip.File
}

// EntryOutcome 把条目名与其转换结果关联起来。
type EntryOutcome struct {
	Entry   string  `json:"entry"`
	Outcome Outcome `json:"outcome"`
}

// BatchResult 是一次压缩包转换的结果。Archive 总是合法的 zip，可能没有任何条目。
type BatchResult struct {
	Name      string         `json:"name"`
	Entries   []EntryOutcome `json:"entries"`
	Archive   []byte         `json:"-"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// Eligible 判断条目名是否可参与批量转换。
func (c *Converter) Eligible(name string) bool {
	clean := strings.ReplaceAll(name, "\\", "/")
	if clean == "" || strings.HasSuffix(clean, "/") {
		return false
	}
	if strings.HasPrefix(clean, "__MACOSX/") || strings.HasPrefix(path.Base(clean), "._") {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(clean), "."))
	if ext == "gif" {
		return c.allowGIF
	}
	_, ok := archiveExtensions[ext]
	return ok
}

// ConvertArchive 逐个解压并转换压缩包内的合格条目，只有容器本身无法打开时才返回错误。
// 超出条目上限或大小上限的条目记为失败，不影响其余条目。
func (c *Converter) ConvertArchive(ctx context.Context, data []byte, name string, req Request) (*BatchResult, error) {
	ctx, end := observability.StartSpan(ctx, "convert", "archive")
	start := time.Now()

	entries, err := c.readArchive(data)
	if err != nil {
		end(err)
		c.logger.ErrorTag("批量", "open %s failed: %v", name, err)
		return nil, err
	}

	outcomes := make([]EntryOutcome, 0, len(entries))
	eligible := 0
	for i, entry := range entries {
		if !entry.Eligible {
			continue
		}
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, cancelRemaining(entries[i:], err)...)
			c.logger.WarnTag("批量", "%s cancelled after %d entries: %v", name, len(outcomes), err)
			break
		}
		eligible++
		if c.maxEntries > 0 && eligible > c.maxEntries {
			outcomes = append(outcomes, EntryOutcome{
				Entry:   entry.Name,
				Outcome: Fail(errors.Newf(errors.KindArchive, "archive", "entry limit exceeded (max %d)", c.maxEntries)),
			})
			continue
		}

		var out Outcome
		payload, err := c.readEntry(entry.file)
		if err != nil {
			out = Fail(err)
		} else {
			out = c.ConvertOne(ctx, payload, entry.Name, req)
		}
		if f, ok := out.Failed(); ok {
			c.logger.WarnTag("批量", "skip %s: %s", entry.Name, f.Reason)
		}
		outcomes = append(outcomes, EntryOutcome{Entry: entry.Name, Outcome: out})
	}

	archive, err := buildArchive(outcomes)
	if err != nil {
		end(err)
		return nil, err
	}
	end(nil)

	result := &BatchResult{
		Name:    ArchiveOutputName(name, req.Target),
		Entries: outcomes,
		Archive: archive,
	}
	for _, o := range outcomes {
		if o.Outcome.OK() {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	elapsed := time.Since(start)
	c.logger.InfoTag("批量", "%s -> %s: %d ok, %d failed (%s)", name, result.Name, result.Succeeded, result.Failed, elapsed)
	observability.RecordMetric(ctx, "convert.archive_entries", float64(len(outcomes)), nil)
	c.publish(TopicBatch, Event{
		Source:    name,
		Output:    result.Name,
		Format:    eventFormat(req.Target),
		Bytes:     len(archive),
		Duration:  elapsed,
		Entries:   len(outcomes),
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	})
	return result, nil
}

// readArchive 只读取中央目录，不解压任何条目。
func (c *Converter) readArchive(data []byte) ([]ArchiveEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(errors.KindArchive, "open", "cannot open archive", err)
	}

	entries := make([]ArchiveEntry, 0, len(zr.File))
	for _, f := range zr.File {
		entries = append(entries, ArchiveEntry{
			Name:     f.Name,
			Eligible: !f.FileInfo().IsDir() && c.Eligible(f.Name),
			file:     f,
		})
	}
	return entries, nil
}

// readEntry 解压单个条目，最多读取 MaxFileSize+1 字节。
// 声明的解压大小与实际读到的字节数都要受上限约束。
func (c *Converter) readEntry(f *zip.File) ([]byte, error) {
	limit := c.validator.maxFileSize()
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return nil, errors.Newf(errors.KindDecode, "archive",
			"file size exceeds limit: %d bytes (max %d bytes)", f.UncompressedSize64, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrap(errors.KindArchive, "archive", "cannot read entry "+f.Name, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.KindArchive, "archive", "cannot read entry "+f.Name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, errors.Newf(errors.KindDecode, "archive",
			"file size exceeds limit: more than %d bytes", limit)
	}
	return data, nil
}

func cancelRemaining(rest []ArchiveEntry, cause error) []EntryOutcome {
	var out []EntryOutcome
	for _, e := range rest {
		if !e.Eligible {
			continue
		}
		out = append(out, EntryOutcome{
			Entry:   e.Name,
			Outcome: Fail(errors.Wrap(errors.KindDomain, "archive", "cancelled", cause)),
		})
	}
	return out
}

// buildArchive 只把成功结果写入新的 zip，重名的输出追加 _1、_2 后缀。
func buildArchive(outcomes []EntryOutcome) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	used := make(map[string]int)
	for _, o := range outcomes {
		done, ok := o.Outcome.Completed()
		if !ok {
			continue
		}
		name := uniqueName(archiveEntryName(o.Entry, done.Name), used)
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, errors.Wrap(errors.KindArchive, "build", "create entry "+name, err)
		}
		if _, err := w.Write(done.Data); err != nil {
			return nil, errors.Wrap(errors.KindArchive, "build", "write entry "+name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(errors.KindArchive, "build", "finalize archive", err)
	}
	return buf.Bytes(), nil
}

// archiveEntryName 保留源条目的目录。
func archiveEntryName(source, output string) string {
	dir := path.Dir(strings.ReplaceAll(source, "\\", "/"))
	if dir == "." || dir == "/" {
		return output
	}
	return dir + "/" + output
}

func uniqueName(name string, used map[string]int) string {
	n, seen := used[name]
	used[name] = n + 1
	if !seen {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if _, taken := used[candidate]; !taken {
			used[candidate] = 1
			return candidate
		}
		n++
	}
}
