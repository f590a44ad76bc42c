package stats

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgconv-server-go/internal/domain/convert"
	"imgconv-server-go/internal/domain/eventbus"
	"imgconv-server-go/internal/platform/errors"
	"imgconv-server-go/internal/utils"
)

func TestCollector_CountsEvents(t *testing.T) {
	bus := eventbus.New(1, 16, utils.NewWriterLogger(&bytes.Buffer{}, "error"))
	c := NewCollector()
	require.NoError(t, c.Attach(bus))

	bus.Publish(convert.TopicCompleted, convert.Event{Format: "bmp", Bytes: 100, Duration: 2 * time.Millisecond})
	bus.Publish(convert.TopicCompleted, convert.Event{Format: "bmp", Bytes: 50, Duration: 4 * time.Millisecond})
	bus.Publish(convert.TopicCompleted, convert.Event{Format: "png", Bytes: 10})
	bus.Publish(convert.TopicFailed, convert.Event{Format: "png", Kind: errors.KindDecode})
	bus.Publish(convert.TopicBatch, convert.Event{Entries: 3})

	snap := c.Snapshot()
	assert.Equal(t, int64(3), snap.Completed)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(160), snap.OutputBytes)
	assert.Equal(t, int64(1), snap.Batches)
	assert.Equal(t, int64(3), snap.BatchEntries)
	assert.Equal(t, FormatCounters{Completed: 2, Bytes: 150}, snap.Formats["bmp"])
	assert.Equal(t, FormatCounters{Completed: 1, Failed: 1, Bytes: 10}, snap.Formats["png"])
	assert.Equal(t, int64(1), snap.FailureKinds["decode"])
	assert.Equal(t, []string{"bmp", "png"}, snap.TopFormats)
	assert.InDelta(t, 1.5, snap.AvgDurationMS, 0.001)
}

func TestCollector_WithConverter(t *testing.T) {
	bus := eventbus.New(1, 16, nil)
	c := NewCollector()
	require.NoError(t, c.Attach(bus))

	conv := convert.NewConverter(convert.Options{
		Logger:    utils.NewWriterLogger(&bytes.Buffer{}, "error"),
		Publisher: bus,
	})
	conv.ConvertOne(context.Background(), []byte("not an image"), "x.png", convert.NewRequest("png"))

	snap := c.Snapshot()
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(1), snap.Formats["png"].Failed)
}

func TestCollector_SnapshotIsCopy(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()
	snap.Formats["gif"] = FormatCounters{Completed: 9}
	assert.Empty(t, c.Snapshot().Formats)
	assert.Zero(t, c.Snapshot().AvgDurationMS)
}
