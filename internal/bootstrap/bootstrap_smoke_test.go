package bootstrap

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformerrors "imgconv-server-go/internal/platform/errors"
	"imgconv-server-go/internal/utils"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, port int, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	content := fmt.Sprintf(`server:
  ip: 127.0.0.1
  port: %d
  shutdown_timeout: 2s
log:
  log_level: INFO
  log_dir: %s
  log_file: server.log
%s`, port, logDir, extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path, logDir
}

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"observability:setup-hooks",
		"storage:init-blob-store",
		"events:init-bus",
		"convert:init-converter",
	}
	require.Len(t, steps, len(want))
	for i, step := range steps {
		assert.Equal(t, want[i], step.ID, "step %d", i)
	}
}

func TestExecuteInitGraph(t *testing.T) {
	path, _ := writeConfig(t, freePort(t), "")
	state := &appState{opts: Options{ConfigPath: path}}
	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))
	defer state.release()

	assert.NotNil(t, state.config)
	assert.Equal(t, path, state.configPath)
	assert.NotNil(t, state.logger)
	assert.NotNil(t, state.observabilityShutdown)
	assert.NotNil(t, state.store)
	assert.NotNil(t, state.bus)
	assert.NotNil(t, state.collector)
	assert.NotNil(t, state.converter)
	assert.Nil(t, state.db)
}

func TestExecuteInitGraph_SQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "blobs.db")
	path, _ := writeConfig(t, freePort(t), fmt.Sprintf(`store:
  driver: sqlite
  sqlite:
    path: %s
`, dbPath))
	state := &appState{opts: Options{ConfigPath: path}}
	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))
	defer state.release()

	require.NotNil(t, state.db)
	st, err := state.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", st.Driver)
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestExecuteInitSteps_MissingDependency(t *testing.T) {
	steps := []initStep{{
		ID:        "convert:init-converter",
		DependsOn: []string{"events:init-bus"},
		Execute:   func(context.Context, *appState) error { return nil },
	}}
	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindBootstrap))
	assert.Contains(t, err.Error(), "events:init-bus")
}

func TestExecuteInitSteps_WrapsUntypedError(t *testing.T) {
	steps := []initStep{{
		ID:      "storage:init-blob-store",
		Kind:    platformerrors.KindStorage,
		Execute: func(context.Context, *appState) error { return fmt.Errorf("disk full") },
	}}
	err := executeInitSteps(context.Background(), steps, &appState{})
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindStorage))
}

func TestLoadConfigStep_MissingFile(t *testing.T) {
	state := &appState{opts: Options{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")}}
	err := loadConfigStep(context.Background(), state)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
}

func TestLogBootstrapGraphOutput(t *testing.T) {
	tmp := t.TempDir()
	logCfg := &utils.LogCfg{
		LogLevel: "info",
		LogDir:   tmp,
		LogFile:  "graph.log",
	}
	logger, err := utils.NewLogger(logCfg)
	require.NoError(t, err)
	logBootstrapGraph(InitGraph(), logger)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(tmp, logCfg.LogFile))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "初始化依赖关系概览")
	for _, step := range InitGraph() {
		assert.Contains(t, content, step.ID)
	}
	assert.Contains(t, content, "convert:init-converter (Initialise converter) <- observability:setup-hooks, events:init-bus")
}

func TestRunServesAndShutsDown(t *testing.T) {
	port := freePort(t)
	path, logDir := writeConfig(t, port, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{ConfigPath: path}) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/formats")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(base + "/openapi.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/api/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	data, err := os.ReadFile(filepath.Join(logDir, "server.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "HTTP 服务已优雅关闭"))
}
