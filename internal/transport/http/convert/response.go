package convert

import (
	"context"

	blobstore "imgconv-server-go/internal/domain/blob/store"
	domainconvert "imgconv-server-go/internal/domain/convert"
)

// Item 是单个上传文件的转换结果视图
type Item struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	Output      string `json:"output,omitempty"`
	MIME        string `json:"mime,omitempty"`
	Size        int    `json:"size,omitempty"`
	DownloadID  string `json:"download_id,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Batch       *Batch `json:"batch,omitempty"`
}

// Batch 是压缩包内各条目的结果
type Batch struct {
	Entries   []Entry `json:"entries"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
}

type Entry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Response 与上传顺序一致
type Response struct {
	Items     []Item `json:"items"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// storeReport 把成功结果写入 blob store 并生成响应视图。
func (s *Service) storeReport(ctx context.Context, report *domainconvert.Report) (*Response, error) {
	resp := &Response{
		Items:     make([]Item, 0, len(report.Items)),
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
	}
	for _, r := range report.Items {
		item := Item{Name: r.Name, Status: string(r.State), Message: r.Message}
		if done, ok := r.Outcome.Completed(); ok {
			id := blobstore.NewID()
			if err := s.store.Put(ctx, id, &blobstore.Blob{Name: done.Name, MIME: done.MIME, Data: done.Data}); err != nil {
				return nil, err
			}
			item.Output = done.Name
			item.MIME = done.MIME
			item.Size = len(done.Data)
			item.DownloadID = id
			item.DownloadURL = "/api/download/" + id
		}
		if r.Batch != nil {
			item.Batch = batchView(r.Batch)
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}

func batchView(b *domainconvert.BatchResult) *Batch {
	out := &Batch{Entries: make([]Entry, 0, len(b.Entries)), Succeeded: b.Succeeded, Failed: b.Failed}
	for _, e := range b.Entries {
		entry := Entry{Name: e.Entry, Status: string(e.Outcome.Status())}
		if done, ok := e.Outcome.Completed(); ok {
			entry.Output = done.Name
		} else if f, ok := e.Outcome.Failed(); ok {
			entry.Reason = f.Reason
		}
		out.Entries = append(out.Entries, entry)
	}
	return out
}
