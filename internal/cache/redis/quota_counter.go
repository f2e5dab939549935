package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// incrBelowLua atomically increments a counter only while it is below the
// limit, setting a TTL on first use so per-day keys expire on their own.
// Returns {count, allowed}.
const incrBelowLua = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
    return {current, 0}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {current, 1}
`

// decrFloorLua decrements a counter but never below zero. Returns the
// resulting count.
const decrFloorLua = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current <= 0 then
    return 0
end
return redis.call('DECR', KEYS[1])
`

// QuotaCounter implements domain.QuotaCounter using Redis counters and atomic
// Lua scripts. Each guest's daily usage lives at key "quota:{userID}:{day}".
type QuotaCounter struct {
	rdb       *redis.Client
	incrBelow *redis.Script
	decrFloor *redis.Script
}

// NewQuotaCounter creates a QuotaCounter backed by the given Client.
func NewQuotaCounter(c *Client) *QuotaCounter {
	return &QuotaCounter{
		rdb:       c.Underlying(),
		incrBelow: redis.NewScript(incrBelowLua),
		decrFloor: redis.NewScript(decrFloorLua),
	}
}

func quotaKey(key string) string {
	return "quota:" + key
}

// IncrBelow atomically increments the counter at key if its current value is
// below limit. It returns the resulting count and whether the increment was
// applied.
func (qc *QuotaCounter) IncrBelow(ctx context.Context, key string, limit int, ttl time.Duration) (int64, bool, error) {
	result, err := qc.incrBelow.Run(
		ctx,
		qc.rdb,
		[]string{quotaKey(key)},
		limit,
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("redis: quota incr %s: %w", key, err)
	}
	if len(result) != 2 {
		return 0, false, fmt.Errorf("redis: quota incr %s: unexpected result length %d", key, len(result))
	}
	return result[0], result[1] == 1, nil
}

// DecrFloor decrements the counter at key, never going below zero, and
// returns the resulting count.
func (qc *QuotaCounter) DecrFloor(ctx context.Context, key string) (int64, error) {
	count, err := qc.decrFloor.Run(ctx, qc.rdb, []string{quotaKey(key)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis: quota decr %s: %w", key, err)
	}
	return count, nil
}

// Compile-time interface check.
var _ domain.QuotaCounter = (*QuotaCounter)(nil)
