package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Ops       OpsConfig       `mapstructure:"ops"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WatcherConfig holds the poll loop and alert decision knobs
type WatcherConfig struct {
	PollInterval           time.Duration `mapstructure:"poll_interval"`
	PollJitterPct          float64       `mapstructure:"poll_jitter_pct"`
	EVThreshold            float64       `mapstructure:"ev_threshold"`
	RenotifyDeltaPct       float64       `mapstructure:"renotify_delta_pct"`
	RenotifyMinInterval    time.Duration `mapstructure:"renotify_min_interval"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
	BackoffBase            time.Duration `mapstructure:"backoff_base"`
	BackoffCap             time.Duration `mapstructure:"backoff_cap"`
	CheckpointInterval     int           `mapstructure:"checkpoint_interval"`
}

// ScrapeConfig holds the headless-browser source configuration
type ScrapeConfig struct {
	URL                string        `mapstructure:"url"`
	WaitSelector       string        `mapstructure:"wait_selector"`
	UserAgent          string        `mapstructure:"user_agent"`
	RenderTimeout      time.Duration `mapstructure:"render_timeout"`
	FetchRetries       int           `mapstructure:"fetch_retries"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	MinRequestInterval time.Duration `mapstructure:"min_request_interval"`
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown    time.Duration `mapstructure:"breaker_cooldown"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BotToken          string        `mapstructure:"bot_token"`
	ChatID            string        `mapstructure:"chat_id"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	MessagesPerMinute int           `mapstructure:"messages_per_minute"`
}

// StorageConfig holds the SQLite history sink configuration
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path"`
	MaxHistory int    `mapstructure:"max_history"`
}

// RedisConfig holds the alert stream fan-out configuration
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"max_len"`
}

// HeartbeatConfig holds the external liveness ping configuration
type HeartbeatConfig struct {
	URL string `mapstructure:"url"`
}

// OpsConfig holds the metrics/health listener configuration
type OpsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FatalError marks configuration faults that must prevent startup.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal config: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("BOOSTWATCH")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, &FatalError{Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &FatalError{Err: fmt.Errorf("failed to unmarshal config: %w", err)}
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Watcher defaults
	v.SetDefault("watcher.poll_interval", "2m")
	v.SetDefault("watcher.poll_jitter_pct", 0.1)
	v.SetDefault("watcher.ev_threshold", 0.0)
	v.SetDefault("watcher.renotify_delta_pct", 0.05)
	v.SetDefault("watcher.renotify_min_interval", "30m")
	v.SetDefault("watcher.max_consecutive_failures", 10)
	v.SetDefault("watcher.backoff_base", "30s")
	v.SetDefault("watcher.backoff_cap", "10m")
	v.SetDefault("watcher.checkpoint_interval", 5)

	// Scrape defaults; url has no default and must be configured
	v.SetDefault("scrape.wait_selector", ".pbb-PopularBetsList")
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("scrape.render_timeout", "45s")
	v.SetDefault("scrape.fetch_retries", 2)
	v.SetDefault("scrape.retry_delay", "5s")
	v.SetDefault("scrape.min_request_interval", "30s")
	v.SetDefault("scrape.breaker_failures", 5)
	v.SetDefault("scrape.breaker_cooldown", "2m")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.messages_per_minute", 20)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/boostwatch.db")
	v.SetDefault("storage.max_history", 1000)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.stream", "boostwatch:alerts")
	v.SetDefault("redis.max_len", 1024)

	// Ops defaults
	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.addr", ":2112")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid. Any failure is a
// *FatalError: the process must refuse to start on it.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return &FatalError{Err: err}
	}
	return nil
}

func (c *Config) validate() error {
	// Validate Watcher config
	if c.Watcher.PollInterval < 10*time.Second {
		return fmt.Errorf("watcher.poll_interval must be at least 10 seconds")
	}
	if c.Watcher.PollJitterPct < 0 || c.Watcher.PollJitterPct >= 1 {
		return fmt.Errorf("watcher.poll_jitter_pct must be in [0, 1)")
	}
	if c.Watcher.EVThreshold < 0 {
		return fmt.Errorf("watcher.ev_threshold must not be negative")
	}
	if c.Watcher.RenotifyDeltaPct < 0 || c.Watcher.RenotifyDeltaPct > 1 {
		return fmt.Errorf("watcher.renotify_delta_pct must be between 0.0 and 1.0")
	}
	if c.Watcher.RenotifyMinInterval < time.Minute {
		return fmt.Errorf("watcher.renotify_min_interval must be at least 1 minute")
	}
	if c.Watcher.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("watcher.max_consecutive_failures must be at least 1")
	}
	if c.Watcher.BackoffBase < time.Second {
		return fmt.Errorf("watcher.backoff_base must be at least 1 second")
	}
	if c.Watcher.BackoffCap < c.Watcher.BackoffBase {
		return fmt.Errorf("watcher.backoff_cap must not be below watcher.backoff_base")
	}
	if c.Watcher.CheckpointInterval < 1 {
		return fmt.Errorf("watcher.checkpoint_interval must be at least 1")
	}

	// Validate Scrape config
	if c.Scrape.URL == "" {
		return fmt.Errorf("scrape.url is required")
	}
	if c.Scrape.WaitSelector == "" {
		return fmt.Errorf("scrape.wait_selector is required")
	}
	if c.Scrape.RenderTimeout < 5*time.Second {
		return fmt.Errorf("scrape.render_timeout must be at least 5 seconds")
	}
	if c.Scrape.FetchRetries < 0 || c.Scrape.FetchRetries > 10 {
		return fmt.Errorf("scrape.fetch_retries must be between 0 and 10")
	}
	if c.Scrape.RetryDelay < 0 {
		return fmt.Errorf("scrape.retry_delay must not be negative")
	}
	if c.Scrape.MinRequestInterval <= 0 {
		return fmt.Errorf("scrape.min_request_interval must be positive")
	}
	if c.Scrape.BreakerFailures < 1 {
		return fmt.Errorf("scrape.breaker_failures must be at least 1")
	}
	if c.Scrape.BreakerCooldown < time.Second {
		return fmt.Errorf("scrape.breaker_cooldown must be at least 1 second")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Telegram.MaxRetries < 1 {
		return fmt.Errorf("telegram.max_retries must be at least 1")
	}
	if c.Telegram.MessagesPerMinute < 1 {
		return fmt.Errorf("telegram.messages_per_minute must be at least 1")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxHistory < 1 {
		return fmt.Errorf("storage.max_history must be at least 1")
	}

	// Validate Redis config
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when redis is enabled")
		}
		if c.Redis.Stream == "" {
			return fmt.Errorf("redis.stream is required when redis is enabled")
		}
		if c.Redis.MaxLen < 1 {
			return fmt.Errorf("redis.max_len must be at least 1")
		}
	}

	// Validate Ops config
	if c.Ops.Enabled && c.Ops.Addr == "" {
		return fmt.Errorf("ops.addr is required when ops is enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, console")
	}

	return nil
}
