package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Level: "info", Dir: dir, Filename: "imgconv.log"})
	require.NoError(t, err)
	defer logger.Close()

	logger.Legacy().InfoTag("引导", "logging ready")
	require.NotNil(t, logger.Slog())

	_, err = os.Stat(filepath.Join(dir, "imgconv.log"))
	assert.NoError(t, err)
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "debug")
	logger.Legacy().DebugTag("转换", "decoded %dx%d", 4, 4)
	assert.Contains(t, buf.String(), "[转换] decoded 4x4")
}
