package convert

import (
	"bytes"
	"context"
	"image/jpeg"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgconv-server-go/internal/platform/errors"
)

func TestEligible(t *testing.T) {
	c := newTestConverter(Options{})
	withGIF := newTestConverter(Options{ArchiveAllowGIF: true})

	tests := []struct {
		name     string
		eligible bool
	}{
		{"a.png", true},
		{"B.JPG", true},
		{"dir/c.jpeg", true},
		{"d.webp", true},
		{"e.bmp", true},
		{"f.tga", true},
		{"g.dds", true},
		{"h.psd", true},
		{"i.tiff", true},
		{"j.tif", true},
		{"k.ico", true},
		{"notes.txt", false},
		{"folder/", false},
		{"__MACOSX/a.png", false},
		{"dir/._a.png", false},
		{"noext", false},
		{"anim.gif", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.eligible, c.Eligible(tt.name), tt.name)
	}
	assert.True(t, withGIF.Eligible("anim.gif"))
}

func TestConvertArchive_WebpScenario(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestConverter(Options{Publisher: pub})

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, gradient(8, 8), nil))
	archive := zipBytes(t,
		zipFile{"a.png", pngBytes(t, translucent(8, 8))},
		zipFile{"b.jpg", jpg.Bytes()},
		zipFile{"notes.txt", []byte("hello")},
	)

	result, err := c.ConvertArchive(context.Background(), archive, "photos.zip", NewRequest("webp"))
	require.NoError(t, err)
	assert.Equal(t, "photos_webp.zip", result.Name)
	assert.Equal(t, []string{"a.webp", "b.webp"}, zipNames(t, result.Archive))
	assert.Equal(t, 2, result.Succeeded)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Entries, 2, "ineligible entries are not reported")
	assert.Equal(t, "a.png", result.Entries[0].Entry)
	assert.Equal(t, "b.jpg", result.Entries[1].Entry)

	last := pub.events[len(pub.events)-1]
	assert.Equal(t, TopicBatch, last.topic)
	assert.Equal(t, 2, last.event.Succeeded)
}

func TestConvertArchive_PartialFailure(t *testing.T) {
	c := newTestConverter(Options{})
	good := pngBytes(t, gradient(6, 6))
	archive := zipBytes(t,
		zipFile{"one.png", good},
		zipFile{"broken.png", []byte("garbage bytes")},
		zipFile{"nested/two.bmp", good},
		zipFile{"readme.md", []byte("# hi")},
	)

	result, err := c.ConvertArchive(context.Background(), archive, "mixed.zip", NewRequest("png"))
	require.NoError(t, err)

	// N=3 合格条目，F=1 失败
	assert.Equal(t, []string{"one.png", "nested/two.png"}, zipNames(t, result.Archive))
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	f, ok := result.Entries[1].Outcome.Failed()
	require.True(t, ok)
	assert.Equal(t, errors.KindDecode, f.Kind)
}

func TestConvertArchive_EmptyAndNoEligibleEntries(t *testing.T) {
	c := newTestConverter(Options{})
	for name, archive := range map[string][]byte{
		"empty":       zipBytes(t),
		"no eligible": zipBytes(t, zipFile{"a.txt", []byte("x")}, zipFile{"dir/", nil}),
	} {
		t.Run(name, func(t *testing.T) {
			result, err := c.ConvertArchive(context.Background(), archive, "x.zip", NewRequest("png"))
			require.NoError(t, err)
			assert.Empty(t, result.Entries)
			assert.NotEmpty(t, result.Archive, "still a valid zip")
			assert.Empty(t, zipNames(t, result.Archive))
		})
	}
}

func TestConvertArchive_InvalidContainer(t *testing.T) {
	c := newTestConverter(Options{})
	_, err := c.ConvertArchive(context.Background(), []byte("not a zip"), "bad.zip", NewRequest("png"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindArchive))

	out, batch := c.Convert(context.Background(), []byte("not a zip"), "bad.zip", NewRequest("png"))
	assert.Nil(t, batch)
	f, ok := out.Failed()
	require.True(t, ok)
	assert.Equal(t, errors.KindArchive, f.Kind)
}

func TestConvertArchive_DuplicateOutputNames(t *testing.T) {
	c := newTestConverter(Options{})
	img := pngBytes(t, gradient(4, 4))
	archive := zipBytes(t,
		zipFile{"a.png", img},
		zipFile{"a.bmp", img},
		zipFile{"a.tif", img},
	)

	result, err := c.ConvertArchive(context.Background(), archive, "dup.zip", NewRequest("png"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "a_1.png", "a_2.png"}, zipNames(t, result.Archive))
}

func TestConvertArchive_Cancelled(t *testing.T) {
	c := newTestConverter(Options{})
	img := pngBytes(t, gradient(4, 4))
	archive := zipBytes(t, zipFile{"a.png", img}, zipFile{"b.png", img})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := c.ConvertArchive(ctx, archive, "c.zip", NewRequest("png"))
	require.NoError(t, err)
	assert.Empty(t, zipNames(t, result.Archive))
	assert.Equal(t, 2, result.Failed)
	for _, e := range result.Entries {
		f, ok := e.Outcome.Failed()
		require.True(t, ok)
		assert.Contains(t, f.Reason, "cancelled")
	}
}

func TestConvertArchive_MaxEntries(t *testing.T) {
	c := newTestConverter(Options{MaxArchiveEntries: 2})
	img := pngBytes(t, gradient(4, 4))
	archive := zipBytes(t,
		zipFile{"a.png", img},
		zipFile{"skip.txt", []byte("x")},
		zipFile{"b.png", img},
		zipFile{"c.png", img},
		zipFile{"d.png", img},
	)

	result, err := c.ConvertArchive(context.Background(), archive, "big.zip", NewRequest("png"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, zipNames(t, result.Archive))
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Entries, 4)
	for _, e := range result.Entries[2:] {
		f, ok := e.Outcome.Failed()
		require.True(t, ok, e.Entry)
		assert.Equal(t, errors.KindArchive, f.Kind)
		assert.Contains(t, f.Reason, "entry limit exceeded")
	}
}

func TestConvertArchive_OversizedEntryIsNotInflated(t *testing.T) {
	c := newTestConverter(Options{Limits: Limits{MaxFileSize: 1 << 20}})

	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	w, err := zw.Create("bomb.png")
	require.NoError(t, err)
	chunk := make([]byte, 1<<20)
	for i := 0; i < 64; i++ {
		_, err = w.Write(chunk)
		require.NoError(t, err)
	}
	w, err = zw.Create("ok.png")
	require.NoError(t, err)
	_, err = w.Write(pngBytes(t, gradient(4, 4)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	archive := b.Bytes()
	require.Less(t, len(archive), 1<<20)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	result, err := c.ConvertArchive(context.Background(), archive, "bomb.zip", NewRequest("png"))
	runtime.ReadMemStats(&after)
	require.NoError(t, err)

	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))
	require.Len(t, result.Entries, 2)
	f, ok := result.Entries[0].Outcome.Failed()
	require.True(t, ok)
	assert.Equal(t, errors.KindDecode, f.Kind)
	assert.Contains(t, f.Reason, "file size exceeds limit")
	assert.True(t, result.Entries[1].Outcome.OK())
}

func TestReadEntry_StopsAtLimit(t *testing.T) {
	c := newTestConverter(Options{Limits: Limits{MaxFileSize: 8}})
	archive := zipBytes(t, zipFile{"small.png", []byte("12345678")}, zipFile{"big.png", []byte("123456789")})
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	data, err := c.readEntry(zr.File[0])
	require.NoError(t, err)
	assert.Equal(t, "12345678", string(data))

	_, err = c.readEntry(zr.File[1])
	assert.True(t, errors.IsKind(err, errors.KindDecode))
}

func TestUniqueName(t *testing.T) {
	used := map[string]int{}
	assert.Equal(t, "x.png", uniqueName("x.png", used))
	assert.Equal(t, "x_1.png", uniqueName("x.png", used))
	assert.Equal(t, "x_1_1.png", uniqueName("x_1.png", used))
	assert.Equal(t, "x_2.png", uniqueName("x.png", used))
}
