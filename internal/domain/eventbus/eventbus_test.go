package eventbus

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgconv-server-go/internal/domain/convert"
	"imgconv-server-go/internal/utils"
)

func quietLogger() *utils.Logger {
	return utils.NewWriterLogger(&bytes.Buffer{}, "error")
}

func TestBus_SyncPublishBeforeStart(t *testing.T) {
	b := New(1, 4, quietLogger())
	var got string
	require.NoError(t, b.Subscribe("topic", func(s string) { got = s }))

	b.Publish("topic", "hello")
	assert.Equal(t, "hello", got)
	assert.True(t, b.HasCallback("topic"))
}

func TestBus_AsyncPublishDrainsOnStop(t *testing.T) {
	b := New(2, 100, quietLogger())
	var count atomic.Int32
	require.NoError(t, b.Subscribe("tick", func(int) { count.Add(1) }))

	b.Start()
	b.Start()
	for i := 0; i < 50; i++ {
		b.Publish("tick", i)
	}
	b.Stop()
	b.Stop()
	assert.Equal(t, int32(50), count.Load())
}

func TestBus_DropsWhenQueueFull(t *testing.T) {
	b := New(1, 1, quietLogger())
	release := make(chan struct{})
	var once sync.Once
	started := make(chan struct{})
	require.NoError(t, b.Subscribe("slow", func() {
		once.Do(func() { close(started) })
		<-release
	}))
	b.Start()

	b.Publish("slow")
	<-started
	b.Publish("slow")
	b.Publish("slow")
	assert.Equal(t, int64(1), b.Dropped())

	close(release)
	b.Stop()
}

func TestBus_RecoversHandlerPanic(t *testing.T) {
	var logs bytes.Buffer
	b := New(1, 4, utils.NewWriterLogger(&logs, "debug"))
	require.NoError(t, b.Subscribe("boom", func() { panic("bad handler") }))

	assert.NotPanics(t, func() { b.Publish("boom") })
	assert.Contains(t, logs.String(), "bad handler")
}

func TestSubscribeLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := utils.NewWriterLogger(&logs, "debug")
	b := New(1, 4, logger)
	require.NoError(t, SubscribeLogging(b, logger))

	b.Publish(convert.TopicCompleted, convert.Event{Source: "a.png", Output: "a.bmp", Bytes: 10, Duration: time.Millisecond})
	b.Publish(convert.TopicFailed, convert.Event{Source: "b.png", Format: "bmp", Reason: "broken"})
	b.Publish(convert.TopicBatch, convert.Event{Source: "c.zip", Output: "c_bmp.zip", Entries: 2, Succeeded: 1})

	out := logs.String()
	assert.Contains(t, out, "completed a.png -> a.bmp")
	assert.Contains(t, out, "failed b.png -> bmp")
	assert.Contains(t, out, "batch c.zip -> c_bmp.zip: 1/2 ok")
}
