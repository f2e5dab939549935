package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// killSwitchLockTTL bounds how long a crashed kill-switch invocation can
// block the next one for the same user.
const killSwitchLockTTL = 30 * time.Second

// KillReport summarizes a bulk close: how many positions ended up closed and
// which ones could not be closed and remain open.
type KillReport struct {
	ClosedCount int      `json:"closed_count"`
	Failures    []string `json:"failures"`
}

// KillSwitch drives the emergency bulk close of every open position owned by
// a user. The operation is best-effort per position, not globally atomic: a
// partial kill switch is preferable to leaving everything open because one
// symbol's feed is down.
type KillSwitch struct {
	positions domain.PositionStore
	feed      domain.PriceFeed
	locks     domain.LockManager
	svc       *PositionService
	alerts    Alerter
	logger    *slog.Logger
}

// NewKillSwitch creates a KillSwitch coordinator. locks and alerts may be
// nil; without locks, concurrent invocations for the same user are
// serialized only by the store's compare-and-set close.
func NewKillSwitch(
	positions domain.PositionStore,
	feed domain.PriceFeed,
	locks domain.LockManager,
	svc *PositionService,
	alerts Alerter,
	logger *slog.Logger,
) *KillSwitch {
	return &KillSwitch{
		positions: positions,
		feed:      feed,
		locks:     locks,
		svc:       svc,
		alerts:    alerts,
		logger:    logger.With(slog.String("component", "kill_switch")),
	}
}

// CloseAll closes every open position owned by userID at its symbol's current
// live price. Positions whose price fetch or store write fails are recorded
// in the report's Failures and left open for retry; a position that was
// already closed by a racing invocation counts as satisfied. Failures are
// never silently dropped.
func (k *KillSwitch) CloseAll(ctx context.Context, userID string) (KillReport, error) {
	if k.locks != nil {
		unlock, err := k.locks.Acquire(ctx, "killswitch:"+userID, killSwitchLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return KillReport{}, fmt.Errorf("kill_switch: user %q: %w", userID, domain.ErrLockHeld)
			}
			return KillReport{}, fmt.Errorf("kill_switch: acquire lock for %q: %w", userID, err)
		}
		defer unlock()
	}

	open, err := k.positions.GetOpen(ctx, userID)
	if err != nil {
		return KillReport{}, fmt.Errorf("kill_switch: get open for %q: %w", userID, err)
	}

	report := KillReport{Failures: []string{}}
	for _, pos := range open {
		price, err := k.feed.GetLatestPrice(ctx, pos.Symbol)
		if err != nil {
			k.logger.WarnContext(ctx, "kill_switch: price unavailable, position left open",
				slog.String("position_id", pos.ID),
				slog.String("symbol", pos.Symbol),
				slog.String("error", err.Error()),
			)
			report.Failures = append(report.Failures, pos.ID)
			continue
		}

		_, err = k.svc.CloseManually(ctx, userID, pos.ID, price)
		switch {
		case err == nil:
			report.ClosedCount++
		case errors.Is(err, domain.ErrConflict):
			// Lost the race to another close; already satisfied.
			report.ClosedCount++
		default:
			k.logger.ErrorContext(ctx, "kill_switch: close failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
			report.Failures = append(report.Failures, pos.ID)
		}
	}

	k.logger.InfoContext(ctx, "kill_switch: completed",
		slog.String("user_id", userID),
		slog.Int("closed", report.ClosedCount),
		slog.Int("failed", len(report.Failures)),
	)

	if k.alerts != nil && len(open) > 0 {
		msg := fmt.Sprintf("user %s: closed %d position(s), %d failed", userID, report.ClosedCount, len(report.Failures))
		if err := k.alerts.Notify(ctx, "kill_switch", "Kill switch triggered", msg); err != nil {
			k.logger.WarnContext(ctx, "kill_switch: alert failed", slog.String("error", err.Error()))
		}
	}
	return report, nil
}
