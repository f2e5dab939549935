package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest fetched prices. A cached
// price carries its fetch timestamp so callers can refuse entries older than
// their own polling interval.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}

// QuotaCounter is the storage port behind the guest quota throttle. Keys are
// per-user-per-day; TTL expiry provides the implicit reset when the day rolls
// over.
type QuotaCounter interface {
	// IncrBelow atomically increments the counter at key if its current
	// value is below limit, returning the resulting count and whether the
	// increment was applied.
	IncrBelow(ctx context.Context, key string, limit int, ttl time.Duration) (count int64, allowed bool, err error)
	// DecrFloor decrements the counter at key, never going below zero, and
	// returns the resulting count.
	DecrFloor(ctx context.Context, key string) (int64, error)
}

// LockManager provides distributed locking, used to serialize kill-switch
// batches per user.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter provides distributed request rate limiting for the API surface.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub fan-out of position lifecycle events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
