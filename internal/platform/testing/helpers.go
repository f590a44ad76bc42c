package testing

import (
	"testing"

	"imgconv-server-go/internal/platform/config"
)

// SetupTestConfig 返回基于默认值、日志写入临时目录的配置。
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Port = 18080
	cfg.Log = config.LogConfig{
		Level: "DEBUG",
		Dir:   t.TempDir(),
		File:  "test.log",
	}
	cfg.Store.Driver = "memory"
	cfg.Security.MaxFileSize = 4 << 20
	cfg.Security.MaxFiles = 8

	return cfg
}
