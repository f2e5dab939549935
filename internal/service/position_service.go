package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// Alerter sends operator/user-facing notifications for lifecycle events. It
// is satisfied by notify.Notifier; a nil Alerter disables alerts.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// PositionService owns the position state machine: it turns signal proposals
// into tracked positions, evaluates live prices against pending triggers and
// risk levels, and performs manual closes. Every transition is persisted
// before it is reported as successful.
type PositionService struct {
	positions domain.PositionStore
	feed      domain.PriceFeed
	bus       domain.SignalBus
	audit     domain.AuditStore
	alerts    Alerter
	logger    *slog.Logger
}

// NewPositionService creates a PositionService. bus, audit, and alerts may be
// nil; the corresponding side channels are then skipped.
func NewPositionService(
	positions domain.PositionStore,
	feed domain.PriceFeed,
	bus domain.SignalBus,
	audit domain.AuditStore,
	alerts Alerter,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		positions: positions,
		feed:      feed,
		bus:       bus,
		audit:     audit,
		alerts:    alerts,
		logger:    logger.With(slog.String("component", "position_service")),
	}
}

// Open creates a position from a signal proposal. A proposal without an entry
// price fills at the current market price and the position starts open. A
// proposal whose entry trigger is already touched by the live price also
// starts open, at the trigger price; otherwise the position starts pending
// and waits for the trigger.
func (s *PositionService) Open(ctx context.Context, userID string, sig domain.SignalProposal) (domain.Position, error) {
	if userID == "" {
		return domain.Position{}, fmt.Errorf("%w: user id required", domain.ErrValidation)
	}

	side, err := domain.SideFromSignal(sig.Direction)
	if err != nil {
		return domain.Position{}, err
	}

	live, err := s.feed.GetLatestPrice(ctx, sig.Symbol)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: live price for %s: %w", sig.Symbol, err)
	}

	now := time.Now().UTC()
	pos := domain.Position{
		ID:         uuid.New().String(),
		UserID:     userID,
		Symbol:     sig.Symbol,
		Side:       side,
		EntryPrice: sig.EntryPrice,
		Size:       sig.Size,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		OpenedAt:   now,
	}

	switch {
	case sig.EntryPrice <= 0:
		// Market fill at the live price.
		pos.EntryPrice = live
		pos.Status = domain.PositionStatusOpen
	case pos.EntryTouched(live):
		pos.Status = domain.PositionStatusOpen
	default:
		pos.Status = domain.PositionStatusPending
	}

	if err := pos.Validate(); err != nil {
		return domain.Position{}, err
	}

	if err := s.positions.Create(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("position_service: create position: %w", err)
	}

	s.publish(ctx, "positions", map[string]any{
		"event":       "position_opened",
		"position_id": pos.ID,
		"user_id":     pos.UserID,
		"symbol":      pos.Symbol,
		"side":        string(pos.Side),
		"status":      string(pos.Status),
		"entry_price": pos.EntryPrice,
		"size":        pos.Size,
	})
	s.auditLog(ctx, "position_opened", map[string]any{
		"position_id": pos.ID,
		"user_id":     pos.UserID,
		"symbol":      pos.Symbol,
		"side":        string(pos.Side),
		"status":      string(pos.Status),
		"entry_price": pos.EntryPrice,
		"size":        pos.Size,
	})

	s.logger.InfoContext(ctx, "position_service: position created",
		slog.String("position_id", pos.ID),
		slog.String("user_id", pos.UserID),
		slog.String("symbol", pos.Symbol),
		slog.String("status", string(pos.Status)),
		slog.Float64("entry_price", pos.EntryPrice),
		slog.Float64("size", pos.Size),
	)

	return pos, nil
}

// Tick evaluates one live price against every pending and open position on a
// symbol. Pending positions whose trigger has been touched become open (the
// trigger price is the entry; no PnL effect). Open positions whose stop-loss
// or take-profit has been crossed are closed at the live price. Each closure
// is independent; a position that loses a close race is skipped, never
// reprocessed.
func (s *PositionService) Tick(ctx context.Context, symbol string, livePrice float64) error {
	active, err := s.positions.ActiveBySymbol(ctx, symbol)
	if err != nil {
		return fmt.Errorf("position_service: active positions for %s: %w", symbol, err)
	}

	now := time.Now().UTC()
	for _, pos := range active {
		switch pos.Status {
		case domain.PositionStatusPending:
			if !pos.EntryTouched(livePrice) {
				continue
			}
			err := s.positions.MarkOpened(ctx, pos.ID, now)
			if errors.Is(err, domain.ErrConflict) {
				continue // raced with another transition
			}
			if err != nil {
				s.logger.ErrorContext(ctx, "position_service: mark opened failed",
					slog.String("position_id", pos.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			s.publish(ctx, "positions", map[string]any{
				"event":       "position_triggered",
				"position_id": pos.ID,
				"user_id":     pos.UserID,
				"symbol":      pos.Symbol,
				"entry_price": pos.EntryPrice,
			})
			s.logger.InfoContext(ctx, "position_service: pending entry triggered",
				slog.String("position_id", pos.ID),
				slog.String("symbol", symbol),
				slog.Float64("live_price", livePrice),
			)

		case domain.PositionStatusOpen:
			stop := pos.StopHit(livePrice)
			take := pos.TakeHit(livePrice)
			if !stop && !take {
				continue
			}

			reason := "take_profit"
			if stop {
				reason = "stop_loss"
			}
			if err := s.closeAt(ctx, pos, livePrice, now, reason); err != nil {
				if errors.Is(err, domain.ErrConflict) {
					continue // already closed elsewhere, benign
				}
				s.logger.ErrorContext(ctx, "position_service: auto close failed",
					slog.String("position_id", pos.ID),
					slog.String("reason", reason),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return nil
}

// CloseManually closes a position owned by userID at the given price. A
// non-positive closePrice means "close at the current market price", which
// requires a live feed fetch; feed failures are surfaced to the caller.
// Closing an already-closed position returns domain.ErrConflict; an unknown
// id or a position owned by someone else returns domain.ErrNotFound.
func (s *PositionService) CloseManually(ctx context.Context, userID, positionID string, closePrice float64) (domain.Position, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: get position %q: %w", positionID, err)
	}
	if pos.UserID != userID {
		// Do not reveal foreign positions.
		return domain.Position{}, fmt.Errorf("position_service: get position %q: %w", positionID, domain.ErrNotFound)
	}
	if pos.Status == domain.PositionStatusClosed {
		return domain.Position{}, fmt.Errorf("position_service: close position %q: %w", positionID, domain.ErrConflict)
	}

	if closePrice <= 0 {
		closePrice, err = s.feed.GetLatestPrice(ctx, pos.Symbol)
		if err != nil {
			return domain.Position{}, fmt.Errorf("position_service: live price for %s: %w", pos.Symbol, err)
		}
	}

	now := time.Now().UTC()
	if err := s.closeAt(ctx, pos, closePrice, now, "manual"); err != nil {
		return domain.Position{}, fmt.Errorf("position_service: close position %q: %w", positionID, err)
	}

	pnl := pos.RawPnL(closePrice)
	pos.Status = domain.PositionStatusClosed
	pos.ClosePrice = &closePrice
	pos.ClosedAt = &now
	pos.PnL = &pnl
	return pos, nil
}

// closeAt persists the closed transition and emits the side-channel events.
// The store's compare-and-set guarantees a single winner when transitions
// race; losers get domain.ErrConflict.
func (s *PositionService) closeAt(ctx context.Context, pos domain.Position, closePrice float64, closedAt time.Time, reason string) error {
	pnl := pos.RawPnL(closePrice)

	if err := s.positions.Close(ctx, pos.ID, closePrice, pnl, closedAt); err != nil {
		return err
	}

	s.publish(ctx, "positions", map[string]any{
		"event":       "position_closed",
		"position_id": pos.ID,
		"user_id":     pos.UserID,
		"symbol":      pos.Symbol,
		"side":        string(pos.Side),
		"close_price": closePrice,
		"pnl":         domain.Round2(pnl),
		"reason":      reason,
	})
	s.auditLog(ctx, "position_closed", map[string]any{
		"position_id": pos.ID,
		"user_id":     pos.UserID,
		"symbol":      pos.Symbol,
		"entry_price": pos.EntryPrice,
		"close_price": closePrice,
		"pnl":         pnl,
		"reason":      reason,
	})

	if reason != "manual" && s.alerts != nil {
		title := fmt.Sprintf("Position auto-closed (%s)", reason)
		msg := fmt.Sprintf("%s %s %.4f @ %.4f, PnL %.2f",
			pos.Symbol, pos.Side, pos.Size, closePrice, domain.Round2(pnl))
		if alertErr := s.alerts.Notify(ctx, "auto_close", title, msg); alertErr != nil {
			s.logger.WarnContext(ctx, "position_service: alert failed",
				slog.String("position_id", pos.ID),
				slog.String("error", alertErr.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "position_service: position closed",
		slog.String("position_id", pos.ID),
		slog.String("reason", reason),
		slog.Float64("close_price", closePrice),
		slog.Float64("pnl", pnl),
	)
	return nil
}

// GetOpen returns all open positions for the given user.
func (s *PositionService) GetOpen(ctx context.Context, userID string) ([]domain.Position, error) {
	positions, err := s.positions.GetOpen(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("position_service: get open for %q: %w", userID, err)
	}
	return positions, nil
}

// History returns the user's closed positions with pagination.
func (s *PositionService) History(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.ListHistory(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("position_service: history for %q: %w", userID, err)
	}
	return positions, nil
}

// publish sends a JSON event to the signal bus; failures are logged, never
// propagated, because the bus is advisory.
func (s *PositionService) publish(ctx context.Context, channel string, event map[string]any) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(event)
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "position_service: publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// auditLog appends an audit entry; failures are logged, never propagated.
func (s *PositionService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "position_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
