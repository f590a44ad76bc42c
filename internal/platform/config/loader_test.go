package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	res, err := NewLoader().WithDotEnv(false).Load()
	require.NoError(t, err)

	assert.Equal(t, "", res.Path)
	assert.Equal(t, DefaultConfig().Server.Port, res.Config.Server.Port)
	assert.Equal(t, 30*time.Minute, res.Config.Store.TTL)
	assert.False(t, res.Config.Convert.ArchiveAllowGIF)
}

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 9090
log:
  log_level: "DEBUG"
  log_dir: "/tmp/logs"
  log_file: "test.log"
store:
  driver: redis
  ttl: 5m
convert:
  archive_allow_gif: true
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0o644))

	res, err := NewLoader().WithDotEnv(false).WithFile(configFile).Load()
	require.NoError(t, err)
	cfg := res.Config

	assert.Equal(t, configFile, res.Path)
	assert.Equal(t, "127.0.0.1", cfg.Server.IP)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Store.TTL)
	assert.True(t, cfg.Convert.ArchiveAllowGIF)
	// 未覆盖的字段保持默认值
	assert.Equal(t, "imgconv:blob:", cfg.Store.Redis.Prefix)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IMGCONV_SERVER_PORT", "7070")
	t.Setenv("IMGCONV_CONVERT_AUTO_ORIENT", "false")

	res, err := NewLoader().WithDotEnv(false).Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, res.Config.Server.Port)
	assert.False(t, res.Config.Convert.AutoOrient)
}

func TestLoader_MissingExplicitFile(t *testing.T) {
	_, err := NewLoader().WithDotEnv(false).WithFile(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.Error(t, err)
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "invalid server port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "unknown store driver", mutate: func(c *Config) { c.Store.Driver = "etcd" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.Store.TTL = 0 }, wantErr: true},
		{name: "negative limit", mutate: func(c *Config) { c.Security.MaxFiles = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := loader.validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDump(t *testing.T) {
	out, err := Dump(DefaultConfig())
	require.NoError(t, err)
	assert.Contains(t, string(out), "archive_allow_gif: false")
	assert.Contains(t, string(out), "driver: memory")
}
