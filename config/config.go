// Package config loads CoderLang configuration from files and the
// environment. Precedence is environment variables (prefix CODERLANG_), then
// the config file, then built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for a CoderLang instance.
type Config struct {
	// Provider selects the model backend: "gemini", "openai", "anthropic"
	// or "mock".
	Provider string `mapstructure:"provider"`

	// FastModel handles routing, chat and derivative work.
	FastModel string `mapstructure:"fast_model"`

	// SmartModel handles code generation.
	SmartModel string `mapstructure:"smart_model"`

	// MaxModelCalls caps model calls per run. 0 means unlimited.
	MaxModelCalls int `mapstructure:"max_model_calls"`

	Server   ServerConfig   `mapstructure:"server"`
	Session  SessionConfig  `mapstructure:"session"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Trace    TraceConfig    `mapstructure:"trace"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SessionConfig selects the session persistence backend.
type SessionConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// CacheConfig selects the model response cache backend.
type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend  string        `mapstructure:"backend"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MemoryConfig configures the persistent memory store.
type MemoryConfig struct {
	Dir string `mapstructure:"dir"`
}

// ExecutorConfig configures local code execution.
type ExecutorConfig struct {
	Interpreter string        `mapstructure:"interpreter"`
	FileSuffix  string        `mapstructure:"file_suffix"`
	Timeout     time.Duration `mapstructure:"timeout"`
	TestTimeout time.Duration `mapstructure:"test_timeout"`
	Workspace   string        `mapstructure:"workspace"`
}

// TraceConfig configures trace persistence.
type TraceConfig struct {
	// Dir receives one JSON trace file per run when non-empty.
	Dir string `mapstructure:"dir"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `mapstructure:"level"`
}

// Load reads configuration. When path is empty, a coderlang.yaml in the
// working directory or $HOME/.coderlang is used if present; a missing file
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CODERLANG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coderlang")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.coderlang")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in defaults without touching files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// Validate checks enum fields for supported values.
func (c *Config) Validate() error {
	switch c.Provider {
	case "gemini", "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}

	switch c.Session.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported session backend %q", c.Session.Backend)
	}

	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "gemini")
	v.SetDefault("fast_model", "gemini-2.5-flash")
	v.SetDefault("smart_model", "gemini-3-pro-preview")
	v.SetDefault("max_model_calls", 50)

	v.SetDefault("server.addr", ":8501")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.path", "coderlang.db")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("memory.dir", ".coderlang/memory")

	v.SetDefault("executor.interpreter", "python3")
	v.SetDefault("executor.file_suffix", ".py")
	v.SetDefault("executor.timeout", 10*time.Second)
	v.SetDefault("executor.test_timeout", 15*time.Second)
	v.SetDefault("executor.workspace", ".coderlang/workspace")

	v.SetDefault("trace.dir", "")

	v.SetDefault("log.level", "info")
}
