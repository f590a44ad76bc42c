package convert

import (
	"time"

	"imgconv-server-go/internal/platform/errors"
)

// 事件主题
const (
	TopicCompleted = "convert:completed"
	TopicFailed    = "convert:failed"
	TopicBatch     = "convert:batch"
)

// Publisher 是事件总线的最小接口，nil 表示不发布事件。
type Publisher interface {
	Publish(topic string, args ...interface{})
}

// Event 描述一次单项转换或一次批量转换。
type Event struct {
	Source    string        `json:"source"`
	Output    string        `json:"output,omitempty"`
	Format    string        `json:"format"`
	Bytes     int           `json:"bytes,omitempty"`
	Kind      errors.Kind   `json:"kind,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration"`
	Entries   int           `json:"entries,omitempty"`
	Succeeded int           `json:"succeeded,omitempty"`
	Failed    int           `json:"failed,omitempty"`
}
