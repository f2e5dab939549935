package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PAPERTRADER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PAPERTRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "PAPERTRADER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PAPERTRADER_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimitPerMin, "PAPERTRADER_SERVER_RATE_LIMIT_PER_MIN")
	setStr(&cfg.Server.APIKey, "PAPERTRADER_SERVER_API_KEY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PAPERTRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "PAPERTRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PAPERTRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PAPERTRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PAPERTRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PAPERTRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PAPERTRADER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PAPERTRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PAPERTRADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PAPERTRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PAPERTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PAPERTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PAPERTRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PAPERTRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PAPERTRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PAPERTRADER_REDIS_TLS_ENABLED")

	// ── Feed ──
	setStr(&cfg.Feed.BaseURL, "PAPERTRADER_FEED_BASE_URL")
	setStr(&cfg.Feed.APIKey, "PAPERTRADER_FEED_API_KEY")
	setDuration(&cfg.Feed.Timeout, "PAPERTRADER_FEED_TIMEOUT")
	setDuration(&cfg.Feed.CacheMaxAge, "PAPERTRADER_FEED_CACHE_MAX_AGE")

	// ── Poller ──
	setBool(&cfg.Poller.Enabled, "PAPERTRADER_POLLER_ENABLED")
	setDuration(&cfg.Poller.Interval, "PAPERTRADER_POLLER_INTERVAL")
	setInt(&cfg.Poller.Concurrency, "PAPERTRADER_POLLER_CONCURRENCY")

	// ── Quota ──
	setInt(&cfg.Quota.GuestDailyLimit, "PAPERTRADER_QUOTA_GUEST_DAILY_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PAPERTRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PAPERTRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PAPERTRADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PAPERTRADER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "PAPERTRADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
