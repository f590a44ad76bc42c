package convert

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgconv-server-go/internal/platform/errors"
	"imgconv-server-go/internal/utils"
)

func TestItemTracker(t *testing.T) {
	tr := NewItemTracker()
	assert.Equal(t, StateUploaded, tr.State())

	assert.Error(t, tr.Advance(StateCompleted), "cannot skip converting")
	require.NoError(t, tr.Advance(StateConverting))
	require.NoError(t, tr.Advance(StateError))
	assert.True(t, tr.State().Terminal())

	assert.Error(t, tr.Advance(StateCompleted), "terminal states are final")
	assert.Error(t, tr.Advance(StateConverting))
	assert.Equal(t, StateError, tr.State())
}

func TestConvertMany_IsolatesFailures(t *testing.T) {
	c := newTestConverter(Options{})
	img := pngBytes(t, gradient(5, 5))
	items := []Item{
		{Name: "first.png", Data: img},
		{Name: "broken.png", Data: []byte{0x00, 0x01}},
		{Name: "third.png", Data: img},
		{Name: "pack.zip", Data: zipBytes(t, zipFile{"inner.png", img})},
	}

	report := c.ConvertMany(context.Background(), items, NewRequest("gif"))
	require.Len(t, report.Items, 4)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	names := make([]string, 0, len(report.Items))
	for _, it := range report.Items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"first.png", "broken.png", "third.png", "pack.zip"}, names)

	assert.Equal(t, StateCompleted, report.Items[0].State)
	assert.Equal(t, StateError, report.Items[1].State)
	assert.NotEmpty(t, report.Items[1].Message)
	assert.Equal(t, StateCompleted, report.Items[2].State)
	assert.Empty(t, report.Items[2].Message)

	require.NotNil(t, report.Items[3].Batch)
	done, ok := report.Items[3].Outcome.Completed()
	require.True(t, ok)
	assert.Equal(t, "pack_gif.zip", done.Name)
}

func TestConvertMany_Cancelled(t *testing.T) {
	c := newTestConverter(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := c.ConvertMany(ctx, []Item{{Name: "a.png", Data: pngBytes(t, gradient(2, 2))}}, NewRequest("png"))
	require.Len(t, report.Items, 1)
	assert.Equal(t, StateError, report.Items[0].State)
	assert.Contains(t, report.Items[0].Message, "cancelled")
}

func TestConvertItem_StateTransitionsAreLegal(t *testing.T) {
	var logs bytes.Buffer
	c := newTestConverter(Options{Logger: utils.NewWriterLogger(&logs, "debug")})
	img := pngBytes(t, gradient(3, 3))

	ok := c.convertItem(context.Background(), Item{Name: "ok.png", Data: img}, NewRequest("png"))
	assert.Equal(t, StateCompleted, ok.State)

	bad := c.convertItem(context.Background(), Item{Name: "bad.png", Data: []byte{1}}, NewRequest("png"))
	assert.Equal(t, StateError, bad.State)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := c.convertItem(ctx, Item{Name: "late.png", Data: img}, NewRequest("png"))
	assert.Equal(t, StateError, cancelled.State)
	assert.Equal(t, errors.KindDomain, mustFailed(t, cancelled.Outcome).Kind)

	assert.NotContains(t, logs.String(), "illegal transition")
}

func TestAdvance_LogsIllegalTransition(t *testing.T) {
	var logs bytes.Buffer
	c := newTestConverter(Options{Logger: utils.NewWriterLogger(&logs, "debug")})
	tr := NewItemTracker()

	c.advance(tr, "x.png", StateCompleted)
	assert.Equal(t, StateUploaded, tr.State())
	assert.Contains(t, logs.String(), "x.png")
	assert.Contains(t, logs.String(), "illegal transition")
}

func mustFailed(t *testing.T, out Outcome) Failed {
	t.Helper()
	f, ok := out.Failed()
	require.True(t, ok)
	return f
}
