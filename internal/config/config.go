package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend       BackendConfig       `mapstructure:"backend"`
	Streaming     StreamingConfig     `mapstructure:"streaming"`
	Bulk          BulkConfig          `mapstructure:"bulk"`
	Dashboard     DashboardConfig     `mapstructure:"dashboard"`
	API           APIConfig           `mapstructure:"api"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	GRPC          GRPCConfig          `mapstructure:"grpc"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Onboarding    OnboardingConfig    `mapstructure:"onboarding"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"`
}

type StreamingConfig struct {
	Quality string `mapstructure:"quality"`
	FPS     int    `mapstructure:"fps"`
	Format  string `mapstructure:"format"`
}

type BulkConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
}

type DashboardConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
	AlertThrottle   time.Duration `mapstructure:"alert_throttle"`
}

type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	TLSCert string `mapstructure:"tls_cert"`
	TLSKey  string `mapstructure:"tls_key"`
	TLSCA   string `mapstructure:"tls_ca"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type NotificationsConfig struct {
	MaxHistory int `mapstructure:"max_history"`
}

type OnboardingConfig struct {
	StatePath string `mapstructure:"state_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads the YAML file at path. A missing file is an error; use Default
// when running without one.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return decode(v)
}

// Default returns the built-in defaults overlaid with CAMDASH_* environment variables.
func Default() (*Config, error) {
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CAMDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.token", "")
	v.SetDefault("streaming.quality", "medium")
	v.SetDefault("streaming.fps", 15)
	v.SetDefault("streaming.format", "jpeg")
	v.SetDefault("bulk.batch_size", 5)
	v.SetDefault("bulk.batch_delay", "1s")
	v.SetDefault("dashboard.refresh_interval", "0s")
	v.SetDefault("dashboard.health_interval", "30s")
	v.SetDefault("dashboard.alert_throttle", "5m")
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8090)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.tls_cert", "")
	v.SetDefault("grpc.tls_key", "")
	v.SetDefault("grpc.tls_ca", "")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "cameras")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("notifications.max_history", 50)
	v.SetDefault("onboarding.state_path", "camdash-onboarding.yaml")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
}

func validate(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Bulk.BatchSize <= 0 {
		return fmt.Errorf("bulk.batch_size must be positive")
	}
	if cfg.Bulk.BatchDelay < 0 {
		return fmt.Errorf("bulk.batch_delay must not be negative")
	}
	if cfg.Streaming.FPS <= 0 {
		return fmt.Errorf("streaming.fps must be positive")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}
	if cfg.Telegram.Enabled {
		if cfg.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if cfg.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}
