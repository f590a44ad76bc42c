package convert

import (
	"github.com/bytedance/sonic"

	"imgconv-server-go/internal/platform/errors"
)

// Status 是单项转换结果的终态。
type Status string

const (
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Completed 是成功结果，字节只在编码完全结束后才挂上。
type Completed struct {
	Data []byte
	Name string
	MIME string
}

// Failed 是失败结果，Reason 总是非空。
type Failed struct {
	Reason string
	Kind   errors.Kind
}

// Outcome 是成功或失败二选一的不可变结果，只能通过 Succeed / Fail 构造。
type Outcome struct {
	completed *Completed
	failed    *Failed
}

// Succeed 构造成功结果。
func Succeed(data []byte, name, mime string) Outcome {
	return Outcome{completed: &Completed{Data: data, Name: name, MIME: mime}}
}

// Fail 由错误构造失败结果，错误分类取自错误链。
func Fail(err error) Outcome {
	if err == nil {
		err = errors.New(errors.KindUnknown, "convert", "unknown failure")
	}
	return Outcome{failed: &Failed{Reason: err.Error(), Kind: errors.KindOf(err)}}
}

func (o Outcome) Status() Status {
	if o.completed != nil {
		return StatusCompleted
	}
	return StatusError
}

func (o Outcome) OK() bool { return o.completed != nil }

// Completed 返回成功字段的拷贝。
func (o Outcome) Completed() (Completed, bool) {
	if o.completed == nil {
		return Completed{}, false
	}
	return *o.completed, true
}

// Failed 返回失败字段的拷贝。
func (o Outcome) Failed() (Failed, bool) {
	if o.completed != nil {
		return Failed{}, false
	}
	if o.failed == nil {
		return Failed{Reason: "not converted", Kind: errors.KindUnknown}, true
	}
	return *o.failed, true
}

type outcomeJSON struct {
	Status Status      `json:"status"`
	Name   string      `json:"name,omitempty"`
	MIME   string      `json:"mime,omitempty"`
	Size   int         `json:"size,omitempty"`
	Reason string      `json:"reason,omitempty"`
	Kind   errors.Kind `json:"kind,omitempty"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	v := outcomeJSON{Status: o.Status()}
	if c, ok := o.Completed(); ok {
		v.Name, v.MIME, v.Size = c.Name, c.MIME, len(c.Data)
	} else {
		f, _ := o.Failed()
		v.Reason, v.Kind = f.Reason, f.Kind
	}
	return sonic.Marshal(v)
}
