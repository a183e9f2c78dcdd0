package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GeminiConfig describes the upstream. APIKey is normally supplied through
// GEMINI_API_KEY and BaseURL through BASE_URL.
type GeminiConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	SafetyThreshold string        `mapstructure:"safety_threshold"`
}

type SecurityConfig struct {
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	Output        string `mapstructure:"output"`
	ConsoleOutput bool   `mapstructure:"console_output"`
	MaxSize       int    `mapstructure:"max_size"`
	MaxBackups    int    `mapstructure:"max_backups"`
	MaxAge        int    `mapstructure:"max_age"`
	Compress      bool   `mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ErrMissingAPIKey is returned by Load when no Gemini API key is configured.
var ErrMissingAPIKey = errors.New("gemini api key is required (set GEMINI_API_KEY or gemini.api_key)")

// BindEnv maps GEMINI_API_KEY and BASE_URL onto their config keys and enables
// automatic SECTION_KEY environment overrides.
func BindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("gemini.base_url", "BASE_URL", "GEMINI_BASE_URL")
}

// RegisterDefaults makes every key known to viper so that Unmarshal sees
// environment overrides for keys absent from the config file.
func RegisterDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)

	v.SetDefault("gemini.timeout", 60*time.Second)
	v.SetDefault("gemini.user_agent", "gemini2openai/1.0")
	v.SetDefault("gemini.safety_threshold", "BLOCK_NONE")

	v.SetDefault("security.enable_cors", false)
	v.SetDefault("security.allowed_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "logs/gemini2openai.log")
	v.SetDefault("logging.console_output", true)
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 10)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("logging.compress", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load loads the configuration from file and environment
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 设置默认值
	setDefaults(&cfg)

	// 验证配置
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes the user-facing part of cfg to path. The API key is
// never written; it belongs in the environment.
func SaveConfig(cfg *Config, path string) error {
	v := viper.New()
	v.Set("server", map[string]any{
		"host":          cfg.Server.Host,
		"port":          cfg.Server.Port,
		"mode":          cfg.Server.Mode,
		"read_timeout":  cfg.Server.ReadTimeout.String(),
		"write_timeout": cfg.Server.WriteTimeout.String(),
	})
	v.Set("gemini", map[string]any{
		"base_url":         cfg.Gemini.BaseURL,
		"timeout":          cfg.Gemini.Timeout.String(),
		"user_agent":       cfg.Gemini.UserAgent,
		"safety_threshold": cfg.Gemini.SafetyThreshold,
	})
	v.Set("security", map[string]any{
		"enable_cors":     cfg.Security.EnableCORS,
		"allowed_origins": cfg.Security.AllowedOrigins,
	})
	v.Set("logging", map[string]any{
		"level":          cfg.Logging.Level,
		"format":         cfg.Logging.Format,
		"output":         cfg.Logging.Output,
		"console_output": cfg.Logging.ConsoleOutput,
		"max_size":       cfg.Logging.MaxSize,
		"max_backups":    cfg.Logging.MaxBackups,
		"max_age":        cfg.Logging.MaxAge,
		"compress":       cfg.Logging.Compress,
	})
	v.Set("metrics", map[string]any{
		"enabled": cfg.Metrics.Enabled,
		"path":    cfg.Metrics.Path,
	})

	return v.WriteConfigAs(path)
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	// 服务器配置
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 90 * time.Second
	}

	// Gemini API配置
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = "https://generativelanguage.googleapis.com/"
	}
	if cfg.Gemini.Timeout == 0 {
		cfg.Gemini.Timeout = 60 * time.Second
	}
	if cfg.Gemini.UserAgent == "" {
		cfg.Gemini.UserAgent = "gemini2openai/1.0"
	}
	if cfg.Gemini.SafetyThreshold == "" {
		cfg.Gemini.SafetyThreshold = "BLOCK_NONE"
	}

	if len(cfg.Security.AllowedOrigins) == 0 {
		cfg.Security.AllowedOrigins = []string{"*"}
	}

	// 日志配置
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "logs/gemini2openai.log"
	}
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 10
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 30
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if !strings.HasPrefix(cfg.Gemini.BaseURL, "http://") && !strings.HasPrefix(cfg.Gemini.BaseURL, "https://") {
		return fmt.Errorf("invalid gemini base url: %q", cfg.Gemini.BaseURL)
	}
	if cfg.Gemini.Timeout < 0 {
		return fmt.Errorf("invalid gemini timeout: %s", cfg.Gemini.Timeout)
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %q", cfg.Metrics.Path)
	}
	return nil
}
