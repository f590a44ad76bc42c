package observability

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Enabled reports whether observability has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan records a lightweight span lifecycle around an operation.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return ctx, func(error) {}
	}

	start := time.Now()
	logger.LogAttrs(ctx, slog.LevelDebug, "obs span start",
		slog.String("component", component),
		slog.String("operation", operation),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		logger.LogAttrs(ctx, level, "obs span end", attrs...)
		defaultRegistry.observe(component+"."+operation+".duration_ms", float64(elapsed.Milliseconds()), nil)
	}
}

// RecordMetric emits a metric datapoint via the configured logger and
// accumulates it in the in-process registry.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return
	}

	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "obs metric", attrs...)
	defaultRegistry.observe(name, value, labels)
}

// MetricPoint 是某个指标（含标签）的累计值。
type MetricPoint struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Max   float64 `json:"max"`
}

type registry struct {
	mu     sync.Mutex
	points map[string]*MetricPoint
}

var defaultRegistry = &registry{points: make(map[string]*MetricPoint)}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func (r *registry) observe(name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.points[key]
	if !ok {
		p = &MetricPoint{Max: value}
		r.points[key] = p
	}
	p.Count++
	p.Sum += value
	if value > p.Max {
		p.Max = value
	}
}

func (r *registry) reset() {
	r.mu.Lock()
	r.points = make(map[string]*MetricPoint)
	r.mu.Unlock()
}

// Snapshot 返回当前累计指标的拷贝。
func Snapshot() map[string]MetricPoint {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	out := make(map[string]MetricPoint, len(defaultRegistry.points))
	for k, v := range defaultRegistry.points {
		out[k] = *v
	}
	return out
}
