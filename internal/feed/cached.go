package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// CachedFeed decorates a PriceFeed with a write-through price cache. Reads
// consult the cache first but refuse entries older than maxAge, so the engine
// never trusts a price staler than its own polling interval.
type CachedFeed struct {
	upstream domain.PriceFeed
	cache    domain.PriceCache
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewCachedFeed wraps upstream with the given cache. maxAge should match the
// poll interval.
func NewCachedFeed(upstream domain.PriceFeed, cache domain.PriceCache, maxAge time.Duration, logger *slog.Logger) *CachedFeed {
	return &CachedFeed{
		upstream: upstream,
		cache:    cache,
		maxAge:   maxAge,
		logger:   logger.With(slog.String("component", "cached_feed")),
	}
}

// GetLatestPrice returns a sufficiently fresh cached price when available,
// otherwise fetches from the upstream gateway and writes through. Cache
// failures are logged and ignored; the cache is an optimization, not a
// source of truth.
func (f *CachedFeed) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	if price, ts, err := f.cache.GetPrice(ctx, symbol); err == nil {
		if time.Since(ts) <= f.maxAge {
			return price, nil
		}
	}

	price, err := f.upstream.GetLatestPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}

	if cacheErr := f.cache.SetPrice(ctx, symbol, price, time.Now().UTC()); cacheErr != nil {
		f.logger.WarnContext(ctx, "feed: price cache write failed",
			slog.String("symbol", symbol),
			slog.String("error", cacheErr.Error()),
		)
	}
	return price, nil
}

// Compile-time interface check.
var _ domain.PriceFeed = (*CachedFeed)(nil)
