package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "IMGCONV"

// Loader 按 默认值 -> 配置文件 -> 环境变量 的顺序合并配置。
type Loader struct {
	useDotEnv bool
	file      string
	paths     []string
}

// NewLoader creates a loader that searches config.yaml in the working directory and ./configs.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		paths:     []string{".", "./configs"},
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithFile 指定配置文件路径，找不到时返回错误。
func (l *Loader) WithFile(path string) *Loader {
	l.file = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load 读取并校验配置
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(); err != nil {
				return nil, fmt.Errorf("load .env: %w", err)
			}
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := ""
	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName("config")
		for _, p := range l.paths {
			v.AddConfigPath(p)
		}
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		path = v.ConfigFileUsed()
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) validate(cfg *Config) error {
	return cfg.Validate()
}

// Dump 以 YAML 形式输出配置，供 -dump-config 使用。
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
