package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/papertrader/internal/cache/redis"
	"github.com/alanyoungcy/papertrader/internal/config"
	"github.com/alanyoungcy/papertrader/internal/domain"
	"github.com/alanyoungcy/papertrader/internal/feed"
	"github.com/alanyoungcy/papertrader/internal/notify"
	"github.com/alanyoungcy/papertrader/internal/poller"
	"github.com/alanyoungcy/papertrader/internal/quota"
	"github.com/alanyoungcy/papertrader/internal/service"
	"github.com/alanyoungcy/papertrader/internal/store/postgres"
)

// Dependencies bundles every component the application needs to run. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	PositionStore domain.PositionStore
	AuditStore    domain.AuditStore

	// Caches
	PriceCache   domain.PriceCache
	QuotaCounter domain.QuotaCounter
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Feed
	Feed domain.PriceFeed

	// Services
	Positions  *service.PositionService
	KillSwitch *service.KillSwitch
	Stats      *service.StatsService
	Throttle   *quota.Throttle
	Poller     *poller.Poller

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.QuotaCounter = redis.NewQuotaCounter(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Price feed ---
	gateway := feed.NewGateway(cfg.Feed.BaseURL, cfg.Feed.APIKey, cfg.Feed.Timeout.Duration)
	if cfg.Feed.CacheMaxAge.Duration > 0 {
		deps.Feed = feed.NewCachedFeed(gateway, deps.PriceCache, cfg.Feed.CacheMaxAge.Duration, logger)
	} else {
		deps.Feed = gateway
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	deps.Positions = service.NewPositionService(
		deps.PositionStore,
		deps.Feed,
		deps.SignalBus,
		deps.AuditStore,
		deps.Notifier,
		logger,
	)
	deps.KillSwitch = service.NewKillSwitch(
		deps.PositionStore,
		deps.Feed,
		deps.LockManager,
		deps.Positions,
		deps.Notifier,
		logger,
	)
	deps.Stats = service.NewStatsService(deps.PositionStore, service.NewDefaultScoring(), logger)
	deps.Throttle = quota.NewThrottle(deps.QuotaCounter, cfg.Quota.GuestDailyLimit, logger)

	if cfg.Poller.Enabled {
		deps.Poller = poller.New(
			deps.PositionStore,
			deps.Feed,
			deps.Positions,
			cfg.Poller.Concurrency,
			logger,
		)
	}

	return deps, cleanup, nil
}
