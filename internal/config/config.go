package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, e.g. AIKO_SERVER_URL
const EnvPrefix = "AIKO"

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	DevServer DevServerConfig `mapstructure:"devserver"`
}

// ServerConfig webhook backend 配置
type ServerConfig struct {
	URL string `mapstructure:"url"` // n8n base URL, overridden by the saved session
}

// SyncConfig 同步引擎配置
type SyncConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ReplyWindow    time.Duration `mapstructure:"reply_window"`    // typing indicator bound
	ProvisionalTTL time.Duration `mapstructure:"provisional_ttl"` // outstanding provisional lifetime
	OptimisticEcho bool          `mapstructure:"optimistic_echo"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Output    string `mapstructure:"output"` // stdout, stderr, file, discard
	FilePath  string `mapstructure:"file_path"`
	AddSource bool   `mapstructure:"add_source"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the /metrics listener
}

// DevServerConfig 本地开发 backend 配置
type DevServerConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Mode       string        `mapstructure:"mode"`
	ReplyDelay time.Duration `mapstructure:"reply_delay"`
}

// Load 加载配置. An empty configPath searches the default locations and a
// missing file is not an error; defaults and environment still apply.
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("aikoctl")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".aikoctl"))
		}
	}

	// 设置环境变量前缀
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "")

	v.SetDefault("sync.poll_interval", 5*time.Second)
	v.SetDefault("sync.request_timeout", 10*time.Second)
	v.SetDefault("sync.reply_window", 60*time.Second)
	v.SetDefault("sync.provisional_ttl", 2*time.Minute)
	v.SetDefault("sync.optimistic_echo", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.add_source", false)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("devserver.host", "127.0.0.1")
	v.SetDefault("devserver.port", 5678)
	v.SetDefault("devserver.mode", "release")
	v.SetDefault("devserver.reply_delay", 1500*time.Millisecond)
}

// Validate 验证配置
func (c *Config) Validate() error {
	// 验证同步间隔
	if c.Sync.PollInterval < 500*time.Millisecond {
		return fmt.Errorf("sync.poll_interval must be at least 500ms, got %s", c.Sync.PollInterval)
	}
	if c.Sync.RequestTimeout <= 0 {
		return fmt.Errorf("sync.request_timeout must be positive")
	}
	if c.Sync.ReplyWindow <= 0 {
		return fmt.Errorf("sync.reply_window must be positive")
	}
	if c.Sync.ProvisionalTTL <= 0 {
		return fmt.Errorf("sync.provisional_ttl must be positive")
	}

	// 验证日志级别
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	// 验证日志格式
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s, must be 'json' or 'text'", c.Log.Format)
	}

	switch c.Log.Output {
	case "stdout", "stderr", "file", "discard":
	default:
		return fmt.Errorf("invalid log output: %s", c.Log.Output)
	}

	// 验证 dev server
	if c.DevServer.Port <= 0 || c.DevServer.Port > 65535 {
		return fmt.Errorf("invalid devserver port: %d", c.DevServer.Port)
	}
	if c.DevServer.Mode != "debug" && c.DevServer.Mode != "release" {
		return fmt.Errorf("invalid devserver mode: %s, must be 'debug' or 'release'", c.DevServer.Mode)
	}
	if c.DevServer.ReplyDelay < 0 {
		return fmt.Errorf("devserver.reply_delay must not be negative")
	}

	return nil
}

// GetDevServerAddr get dev server 地址
func (c *Config) GetDevServerAddr() string {
	return fmt.Sprintf("%s:%d", c.DevServer.Host, c.DevServer.Port)
}
