package eventbus

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"imgconv-server-go/internal/utils"
)

const (
	defaultWorkers = 2
	defaultQueue   = 1000
)

type asyncEvent struct {
	topic string
	args  []interface{}
}

// Bus 在 asaskevich/EventBus 之上提供带缓冲队列的异步发布。
// 未启动时 Publish 同步分发；启动后由 worker 分发，队列满时丢弃并计数。
type Bus struct {
	bus      evbus.Bus
	logger   *utils.Logger
	workers  int
	workChan chan asyncEvent
	stopChan chan struct{}
	wg       sync.WaitGroup

	started  atomic.Bool
	stopOnce sync.Once
	dropped  atomic.Int64
}

// New 创建事件总线，workers 或 queue 非正时使用默认值。
func New(workers, queue int, logger *utils.Logger) *Bus {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queue <= 0 {
		queue = defaultQueue
	}
	return &Bus{
		bus:      evbus.New(),
		logger:   logger,
		workers:  workers,
		workChan: make(chan asyncEvent, queue),
		stopChan: make(chan struct{}),
	}
}

// Start 启动异步 worker，重复调用无效。
func (b *Bus) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
}

// Stop 停止 worker，已入队的事件会先分发完。
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
	})
	b.wg.Wait()
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case ev := <-b.workChan:
			b.dispatch(ev)
		case <-b.stopChan:
			for {
				select {
				case ev := <-b.workChan:
					b.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(ev asyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorTag("事件", "handler for %s panicked: %v", ev.topic, r)
		}
	}()
	b.bus.Publish(ev.topic, ev.args...)
}

// Publish 发布事件。
func (b *Bus) Publish(topic string, args ...interface{}) {
	if !b.started.Load() {
		b.dispatch(asyncEvent{topic: topic, args: args})
		return
	}
	select {
	case b.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		n := b.dropped.Add(1)
		b.logger.WarnTag("事件", "queue full, dropped %s (total dropped %d)", topic, n)
	}
}

// Subscribe 订阅事件，fn 的参数需与发布参数一致。
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (b *Bus) Unsubscribe(topic string, handler interface{}) error {
	return b.bus.Unsubscribe(topic, handler)
}

// HasCallback 检查是否有订阅者
func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Dropped 返回因队列满被丢弃的事件数。
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
