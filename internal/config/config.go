// Package config defines the top-level configuration for the paper trading
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PAPERTRADER_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Feed     FeedConfig     `toml:"feed"`
	Poller   PollerConfig   `toml:"poller"`
	Quota    QuotaConfig    `toml:"quota"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, requires every request to present the key as a
	// Bearer token or in the X-API-Key header. Empty disables auth.
	APIKey string `toml:"api_key"`
	// RateLimitPerMin caps authenticated API requests per user per minute.
	// Zero disables the limiter.
	RateLimitPerMin int `toml:"rate_limit_per_min"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// FeedConfig holds price feed gateway parameters.
type FeedConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
	// CacheMaxAge bounds how stale a cached price may be before the gateway
	// is consulted again. Zero disables the cache layer.
	CacheMaxAge duration `toml:"cache_max_age"`
}

// PollerConfig holds trigger evaluation loop parameters.
type PollerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Interval    duration `toml:"interval"`
	Concurrency int      `toml:"concurrency"`
}

// QuotaConfig holds guest usage quota parameters.
type QuotaConfig struct {
	GuestDailyLimit int `toml:"guest_daily_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMin: 120,
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "papertrader",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Feed: FeedConfig{
			BaseURL:     "http://localhost:9100",
			Timeout:     duration{5 * time.Second},
			CacheMaxAge: duration{2 * time.Second},
		},
		Poller: PollerConfig{
			Enabled:     true,
			Interval:    duration{5 * time.Second},
			Concurrency: 8,
		},
		Quota: QuotaConfig{
			GuestDailyLimit: 3,
		},
		Notify: NotifyConfig{
			Events: []string{"auto_close", "kill_switch"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimitPerMin < 0 {
		errs = append(errs, "server: rate_limit_per_min must be >= 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Feed
	if c.Feed.BaseURL == "" {
		errs = append(errs, "feed: base_url must not be empty")
	}
	if c.Feed.Timeout.Duration <= 0 {
		errs = append(errs, "feed: timeout must be > 0")
	}
	if c.Feed.CacheMaxAge.Duration < 0 {
		errs = append(errs, "feed: cache_max_age must be >= 0")
	}

	// Poller
	if c.Poller.Enabled {
		if c.Poller.Interval.Duration <= 0 {
			errs = append(errs, "poller: interval must be > 0 when enabled")
		}
		if c.Poller.Concurrency < 1 {
			errs = append(errs, "poller: concurrency must be >= 1 when enabled")
		}
	}

	// Quota
	if c.Quota.GuestDailyLimit < 1 {
		errs = append(errs, "quota: guest_daily_limit must be >= 1")
	}

	// Notify — token and chat id must be set together, or both empty.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
