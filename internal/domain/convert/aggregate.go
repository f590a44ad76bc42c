package convert

import (
	"context"
	"sync"

	"imgconv-server-go/internal/platform/errors"
)

// ItemState 是多文件请求中单项的处理状态。
type ItemState string

const (
	StateUploaded   ItemState = "uploaded"
	StateConverting ItemState = "converting"
	StateCompleted  ItemState = "completed"
	StateError      ItemState = "error"
)

// Terminal 报告状态是否为终态。
func (s ItemState) Terminal() bool {
	return s == StateCompleted || s == StateError
}

var itemTransitions = map[ItemState][]ItemState{
	StateUploaded:   {StateConverting},
	StateConverting: {StateCompleted, StateError},
}

// ItemTracker 记录单项状态，只允许 uploaded -> converting -> completed|error。
type ItemTracker struct {
	mu    sync.Mutex
	state ItemState
}

func NewItemTracker() *ItemTracker {
	return &ItemTracker{state: StateUploaded}
}

func (t *ItemTracker) State() ItemState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Advance 执行一次状态迁移，非法迁移返回错误且状态不变。
func (t *ItemTracker) Advance(next ItemState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, allowed := range itemTransitions[t.state] {
		if allowed == next {
			t.state = next
			return nil
		}
	}
	return errors.Newf(errors.KindDomain, "advance", "illegal transition %s -> %s", t.state, next)
}

// Item 是多文件请求中的一个上传文件。
type Item struct {
	Name string
	Data []byte
}

// ItemReport 是单项的最终报告。
type ItemReport struct {
	Name    string       `json:"name"`
	State   ItemState    `json:"status"`
	Message string       `json:"message,omitempty"`
	Outcome Outcome      `json:"outcome"`
	Batch   *BatchResult `json:"batch,omitempty"`
}

// Report 与输入顺序一一对应。
type Report struct {
	Items     []ItemReport `json:"items"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// ConvertMany 按输入顺序逐个转换，任何一项失败都不会影响其余各项。
func (c *Converter) ConvertMany(ctx context.Context, items []Item, req Request) *Report {
	report := &Report{Items: make([]ItemReport, 0, len(items))}
	for _, item := range items {
		r := c.convertItem(ctx, item, req)
		if r.State == StateCompleted {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Items = append(report.Items, r)
	}
	c.logger.InfoTag("转换", "request finished: %d items, %d ok, %d failed", len(items), report.Succeeded, report.Failed)
	return report
}

// advance 推进单项状态，非法迁移只记录日志，状态保持不变。
func (c *Converter) advance(tracker *ItemTracker, name string, next ItemState) {
	if err := tracker.Advance(next); err != nil {
		c.logger.WarnTag("转换", "%s: %v", name, err)
	}
}

func (c *Converter) convertItem(ctx context.Context, item Item, req Request) ItemReport {
	tracker := NewItemTracker()
	report := ItemReport{Name: item.Name}

	c.advance(tracker, item.Name, StateConverting)
	if err := ctx.Err(); err != nil {
		report.Outcome = Fail(errors.Wrap(errors.KindDomain, "convert", "cancelled", err))
	} else {
		report.Outcome, report.Batch = c.Convert(ctx, item.Data, item.Name, req)
	}

	if f, ok := report.Outcome.Failed(); ok {
		c.advance(tracker, item.Name, StateError)
		report.Message = f.Reason
	} else {
		c.advance(tracker, item.Name, StateCompleted)
	}
	report.State = tracker.State()
	return report
}
