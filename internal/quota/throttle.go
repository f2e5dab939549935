// Package quota implements the daily action throttle for guest users. It
// gates only the signal-execution entry points and has no relation to the
// position state machine.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// DefaultDailyLimit is the number of actions a guest may perform per calendar
// day when no limit is configured.
const DefaultDailyLimit = 3

// keyTTL keeps per-day counters alive long enough to cover clock skew across
// the day boundary; expiry provides the implicit daily reset.
const keyTTL = 48 * time.Hour

// Throttle counts guest actions per calendar day against a configurable
// limit. Days are evaluated in a fixed reference timezone so a guest cannot
// reset their own quota by changing client timezone.
type Throttle struct {
	counter domain.QuotaCounter
	limit   int
	loc     *time.Location
	logger  *slog.Logger
}

// NewThrottle creates a Throttle over the given counter. A non-positive limit
// falls back to DefaultDailyLimit. Days are computed in UTC.
func NewThrottle(counter domain.QuotaCounter, limit int, logger *slog.Logger) *Throttle {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Throttle{
		counter: counter,
		limit:   limit,
		loc:     time.UTC,
		logger:  logger.With(slog.String("component", "guest_quota")),
	}
}

// Limit returns the configured daily limit.
func (t *Throttle) Limit() int {
	return t.limit
}

func (t *Throttle) dayKey(userID string, today time.Time) string {
	return fmt.Sprintf("%s:%s", userID, today.In(t.loc).Format("2006-01-02"))
}

// CheckAndIncrement reserves one quota slot for the user on the given day.
// It returns false, without incrementing, once the daily limit is reached.
func (t *Throttle) CheckAndIncrement(ctx context.Context, userID string, today time.Time) (bool, error) {
	count, allowed, err := t.counter.IncrBelow(ctx, t.dayKey(userID, today), t.limit, keyTTL)
	if err != nil {
		return false, fmt.Errorf("quota: check %s: %w", userID, err)
	}

	if !allowed {
		t.logger.InfoContext(ctx, "quota: guest limit reached",
			slog.String("user_id", userID),
			slog.Int64("count", count),
			slog.Int("limit", t.limit),
		)
	}
	return allowed, nil
}

// Refund returns one previously reserved slot, floored at zero. Used when
// the action the slot was reserved for subsequently fails, so a failed
// attempt does not permanently cost the guest a slot.
func (t *Throttle) Refund(ctx context.Context, userID string, today time.Time) error {
	if _, err := t.counter.DecrFloor(ctx, t.dayKey(userID, today)); err != nil {
		return fmt.Errorf("quota: refund %s: %w", userID, err)
	}
	return nil
}
