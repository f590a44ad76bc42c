package eventbus

import (
	"imgconv-server-go/internal/domain/convert"
	"imgconv-server-go/internal/utils"
)

// SubscribeLogging 把转换事件写入调试日志。
func SubscribeLogging(b *Bus, logger *utils.Logger) error {
	handlers := map[string]func(convert.Event){
		convert.TopicCompleted: func(ev convert.Event) {
			logger.DebugTag("事件", "completed %s -> %s (%d bytes, %s)", ev.Source, ev.Output, ev.Bytes, ev.Duration)
		},
		convert.TopicFailed: func(ev convert.Event) {
			logger.DebugTag("事件", "failed %s -> %s: [%s] %s", ev.Source, ev.Format, ev.Kind, ev.Reason)
		},
		convert.TopicBatch: func(ev convert.Event) {
			logger.DebugTag("事件", "batch %s -> %s: %d/%d ok", ev.Source, ev.Output, ev.Succeeded, ev.Entries)
		},
	}
	for topic, fn := range handlers {
		if err := b.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	return nil
}
