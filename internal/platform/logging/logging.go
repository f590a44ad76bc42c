package logging

import (
	"fmt"
	"io"
	"log/slog"

	"imgconv-server-go/internal/utils"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

// Logger provides access to both slog and the tagged logging APIs.
type Logger struct {
	legacy *utils.Logger
}

// New creates a new Logger instance backed by utils.Logger.
func New(cfg Config) (*Logger, error) {
	logCfg := &utils.LogCfg{
		LogLevel: cfg.Level,
		LogDir:   cfg.Dir,
		LogFile:  cfg.Filename,
	}
	legacy, err := utils.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return &Logger{legacy: legacy}, nil
}

// NewWriter 构造只写入 w 的日志实例，不创建日志文件。
func NewWriter(w io.Writer, level string) *Logger {
	return &Logger{legacy: utils.NewWriterLogger(w, level)}
}

// Legacy exposes the underlying tagged logger.
func (l *Logger) Legacy() *utils.Logger {
	return l.legacy
}

// Slog exposes the structured logger for new integrations.
func (l *Logger) Slog() *slog.Logger {
	return l.legacy.Slog()
}

// Close 关闭底层日志文件。
func (l *Logger) Close() error {
	return l.legacy.Close()
}
