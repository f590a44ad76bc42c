package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Web           WebConfig           `yaml:"web" mapstructure:"web"`
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Convert       ConvertConfig       `yaml:"convert" mapstructure:"convert"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

type ServerConfig struct {
	IP              string        `yaml:"ip" mapstructure:"ip"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"log_level" mapstructure:"log_level"`
	Dir   string `yaml:"log_dir" mapstructure:"log_dir"`
	File  string `yaml:"log_file" mapstructure:"log_file"`
}

type WebConfig struct {
	StaticDir    string   `yaml:"static_dir" mapstructure:"static_dir"`
	AllowOrigins []string `yaml:"allow_origins" mapstructure:"allow_origins"`
	Docs         bool     `yaml:"docs" mapstructure:"docs"`
}

// StoreConfig 转换结果缓存（blob store）配置
type StoreConfig struct {
	Driver            string        `yaml:"driver" mapstructure:"driver"`
	TTL               time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Cleanup           time.Duration `yaml:"cleanup" mapstructure:"cleanup"`
	CompressThreshold int           `yaml:"compress_threshold" mapstructure:"compress_threshold"`
	Redis             RedisStore    `yaml:"redis,omitempty" mapstructure:"redis"`
	SQLite            SQLiteStore   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
}

type RedisStore struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db,omitempty" mapstructure:"db"`
	Prefix   string `yaml:"prefix,omitempty" mapstructure:"prefix"`
}

type SQLiteStore struct {
	Path string `yaml:"path,omitempty" mapstructure:"path"`
}

// ConvertConfig 转换管线行为开关
type ConvertConfig struct {
	ArchiveAllowGIF     bool `yaml:"archive_allow_gif" mapstructure:"archive_allow_gif"`
	AutoOrient          bool `yaml:"auto_orient" mapstructure:"auto_orient"`
	DeleteAfterDownload bool `yaml:"delete_after_download" mapstructure:"delete_after_download"`
	MaxArchiveEntries   int  `yaml:"max_archive_entries" mapstructure:"max_archive_entries"`
	PreviewSize         int  `yaml:"preview_size" mapstructure:"preview_size"`
}

type SecurityConfig struct {
	MaxFileSize int64 `yaml:"max_file_size" mapstructure:"max_file_size"`
	MaxPixels   int64 `yaml:"max_pixels" mapstructure:"max_pixels"`
	MaxWidth    int   `yaml:"max_width" mapstructure:"max_width"`
	MaxHeight   int   `yaml:"max_height" mapstructure:"max_height"`
	MaxFiles    int   `yaml:"max_files" mapstructure:"max_files"`
}

type ObservabilityConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			AllowOrigins: []string{"*"},
			Docs:         true,
		},
		Store: StoreConfig{
			Driver:            "memory",
			TTL:               30 * time.Minute,
			Cleanup:           time.Minute,
			CompressThreshold: 64 * 1024,
			Redis: RedisStore{
				Addr:   "127.0.0.1:6379",
				Prefix: "imgconv:blob:",
			},
			SQLite: SQLiteStore{
				Path: "data/imgconv.db",
			},
		},
		Convert: ConvertConfig{
			ArchiveAllowGIF:     false,
			AutoOrient:          true,
			DeleteAfterDownload: false,
			MaxArchiveEntries:   2000,
			PreviewSize:         500,
		},
		Security: SecurityConfig{
			MaxFileSize: 64 * 1024 * 1024,
			MaxPixels:   64 * 1024 * 1024,
			MaxWidth:    16384,
			MaxHeight:   16384,
			MaxFiles:    50,
		},
		Observability: ObservabilityConfig{
			Enabled: false,
		},
	}
}

// Validate 检查配置取值是否合法
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch strings.ToLower(c.Store.Driver) {
	case "", "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("store.driver unsupported: %s", c.Store.Driver)
	}
	if c.Store.TTL <= 0 {
		return fmt.Errorf("store.ttl must be positive")
	}
	if c.Store.CompressThreshold < 0 {
		return fmt.Errorf("store.compress_threshold must not be negative")
	}
	if c.Security.MaxFileSize < 0 || c.Security.MaxPixels < 0 ||
		c.Security.MaxWidth < 0 || c.Security.MaxHeight < 0 || c.Security.MaxFiles < 0 {
		return fmt.Errorf("security limits must not be negative")
	}
	if c.Convert.MaxArchiveEntries < 0 {
		return fmt.Errorf("convert.max_archive_entries must not be negative")
	}
	return nil
}
