package stats

import (
	"sort"
	"sync"
	"time"

	"imgconv-server-go/internal/domain/convert"
	"imgconv-server-go/internal/domain/eventbus"
)

// FormatCounters 是单个目标格式的累计值。
type FormatCounters struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Bytes     int64 `json:"bytes"`
}

// Snapshot 是 /api/stats 返回的统计快照。
type Snapshot struct {
	Since         time.Time                 `json:"since"`
	Completed     int64                     `json:"completed"`
	Failed        int64                     `json:"failed"`
	OutputBytes   int64                     `json:"output_bytes"`
	Batches       int64                     `json:"batches"`
	BatchEntries  int64                     `json:"batch_entries"`
	AvgDurationMS float64                   `json:"avg_duration_ms"`
	Formats       map[string]FormatCounters `json:"formats"`
	FailureKinds  map[string]int64          `json:"failure_kinds"`
	TopFormats    []string                  `json:"top_formats"`
	DroppedEvents int64                     `json:"dropped_events"`
}

// Collector 订阅转换事件并累计计数，可并发使用。
type Collector struct {
	mu        sync.Mutex
	snap      Snapshot
	totalTime time.Duration
	bus       *eventbus.Bus
}

func NewCollector() *Collector {
	return &Collector{
		snap: Snapshot{
			Since:        time.Now(),
			Formats:      make(map[string]FormatCounters),
			FailureKinds: make(map[string]int64),
		},
	}
}

// Attach 订阅总线上的转换主题。
func (c *Collector) Attach(bus *eventbus.Bus) error {
	c.bus = bus
	if err := bus.Subscribe(convert.TopicCompleted, c.onCompleted); err != nil {
		return err
	}
	if err := bus.Subscribe(convert.TopicFailed, c.onFailed); err != nil {
		return err
	}
	return bus.Subscribe(convert.TopicBatch, c.onBatch)
}

func (c *Collector) onCompleted(ev convert.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Completed++
	c.snap.OutputBytes += int64(ev.Bytes)
	c.totalTime += ev.Duration
	f := c.snap.Formats[ev.Format]
	f.Completed++
	f.Bytes += int64(ev.Bytes)
	c.snap.Formats[ev.Format] = f
}

func (c *Collector) onFailed(ev convert.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Failed++
	c.totalTime += ev.Duration
	f := c.snap.Formats[ev.Format]
	f.Failed++
	c.snap.Formats[ev.Format] = f
	c.snap.FailureKinds[string(ev.Kind)]++
}

func (c *Collector) onBatch(ev convert.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Batches++
	c.snap.BatchEntries += int64(ev.Entries)
}

// Snapshot 返回当前统计的深拷贝。
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.snap
	out.Formats = make(map[string]FormatCounters, len(c.snap.Formats))
	for k, v := range c.snap.Formats {
		out.Formats[k] = v
	}
	out.FailureKinds = make(map[string]int64, len(c.snap.FailureKinds))
	for k, v := range c.snap.FailureKinds {
		out.FailureKinds[k] = v
	}
	if n := c.snap.Completed + c.snap.Failed; n > 0 {
		out.AvgDurationMS = float64(c.totalTime.Microseconds()) / 1000 / float64(n)
	}
	out.TopFormats = topFormats(out.Formats)
	if c.bus != nil {
		out.DroppedEvents = c.bus.Dropped()
	}
	return out
}

func topFormats(formats map[string]FormatCounters) []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := formats[names[i]], formats[names[j]]
		if a.Completed != b.Completed {
			return a.Completed > b.Completed
		}
		return names[i] < names[j]
	})
	return names
}
