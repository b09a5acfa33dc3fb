package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	content := `
watcher:
  poll_interval: 90s
  ev_threshold: 0.02
  renotify_delta_pct: 0.05
  renotify_min_interval: 45m

scrape:
  url: "https://bookmaker.example/promotions"
  wait_selector: ".pbb-PopularBetsList"

telegram:
  enabled: true
  bot_token: "test_token"
  chat_id: "12345"

storage:
  db_path: "./data/test.db"
  max_history: 500

redis:
  enabled: true
  addr: "localhost:6379"
  stream: "boostwatch:alerts"

logging:
  level: "info"
  format: "json"
`
	path := writeTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Watcher.PollInterval != 90*time.Second {
		t.Errorf("Unexpected poll interval: %v", cfg.Watcher.PollInterval)
	}
	if cfg.Watcher.EVThreshold != 0.02 {
		t.Errorf("Unexpected EV threshold: %f", cfg.Watcher.EVThreshold)
	}
	if cfg.Watcher.RenotifyMinInterval != 45*time.Minute {
		t.Errorf("Unexpected renotify interval: %v", cfg.Watcher.RenotifyMinInterval)
	}
	if cfg.Scrape.URL != "https://bookmaker.example/promotions" {
		t.Errorf("Unexpected scrape URL: %s", cfg.Scrape.URL)
	}
	if cfg.Storage.MaxHistory != 500 {
		t.Errorf("Unexpected max history: %d", cfg.Storage.MaxHistory)
	}

	// Unset keys fall back to defaults.
	if cfg.Watcher.BackoffBase != 30*time.Second {
		t.Errorf("Unexpected backoff base default: %v", cfg.Watcher.BackoffBase)
	}
	if cfg.Watcher.BackoffCap != 10*time.Minute {
		t.Errorf("Unexpected backoff cap default: %v", cfg.Watcher.BackoffCap)
	}
	if cfg.Scrape.BreakerFailures != 5 {
		t.Errorf("Unexpected breaker failures default: %d", cfg.Scrape.BreakerFailures)
	}
	if cfg.Telegram.MessagesPerMinute != 20 {
		t.Errorf("Unexpected messages per minute default: %d", cfg.Telegram.MessagesPerMinute)
	}
	if !cfg.Ops.Enabled || cfg.Ops.Addr != ":2112" {
		t.Errorf("Unexpected ops defaults: %+v", cfg.Ops)
	}
	if cfg.Redis.MaxLen != 1024 {
		t.Errorf("Unexpected redis max_len default: %d", cfg.Redis.MaxLen)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Errorf("expected *FatalError, got %T", err)
	}
}

func validConfig() *Config {
	return &Config{
		Watcher: WatcherConfig{
			PollInterval:           2 * time.Minute,
			PollJitterPct:          0.1,
			EVThreshold:            0,
			RenotifyDeltaPct:       0.05,
			RenotifyMinInterval:    30 * time.Minute,
			MaxConsecutiveFailures: 10,
			BackoffBase:            30 * time.Second,
			BackoffCap:             10 * time.Minute,
			CheckpointInterval:     5,
		},
		Scrape: ScrapeConfig{
			URL:                "https://bookmaker.example/promotions",
			WaitSelector:       ".pbb-PopularBetsList",
			RenderTimeout:      45 * time.Second,
			FetchRetries:       2,
			RetryDelay:         5 * time.Second,
			MinRequestInterval: 30 * time.Second,
			BreakerFailures:    5,
			BreakerCooldown:    2 * time.Minute,
		},
		Telegram: TelegramConfig{
			Enabled:           false,
			MaxRetries:        3,
			RetryDelayBase:    time.Second,
			MessagesPerMinute: 20,
		},
		Storage: StorageConfig{
			DBPath:     "./data/boostwatch.db",
			MaxHistory: 1000,
		},
		Redis: RedisConfig{
			Enabled: false,
		},
		Ops: OpsConfig{
			Enabled: true,
			Addr:    ":2112",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid baseline",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "poll interval too short",
			mutate:  func(c *Config) { c.Watcher.PollInterval = 5 * time.Second },
			wantErr: true,
		},
		{
			name:    "jitter out of range",
			mutate:  func(c *Config) { c.Watcher.PollJitterPct = 1.0 },
			wantErr: true,
		},
		{
			name:    "renotify delta above one",
			mutate:  func(c *Config) { c.Watcher.RenotifyDeltaPct = 1.5 },
			wantErr: true,
		},
		{
			name:    "backoff cap below base",
			mutate:  func(c *Config) { c.Watcher.BackoffCap = time.Second },
			wantErr: true,
		},
		{
			name:    "missing scrape url",
			mutate:  func(c *Config) { c.Scrape.URL = "" },
			wantErr: true,
		},
		{
			name: "missing telegram token when enabled",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.ChatID = "12345"
			},
			wantErr: true,
		},
		{
			name: "missing redis stream when enabled",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Addr = "localhost:6379"
				c.Redis.Stream = ""
			},
			wantErr: true,
		},
		{
			name:    "missing ops addr when enabled",
			mutate:  func(c *Config) { c.Ops.Addr = "" },
			wantErr: true,
		},
		{
			name:    "invalid logging format",
			mutate:  func(c *Config) { c.Logging.Format = "text" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var fatal *FatalError
				if !errors.As(err, &fatal) {
					t.Errorf("expected *FatalError, got %T", err)
				}
			}
		})
	}
}
