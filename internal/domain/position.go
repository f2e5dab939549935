package domain

import (
	"fmt"
	"strings"
	"time"
)

// Side is the direction of a simulated position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SideFromSignal maps a signal direction string to a position side.
// "buy"/"long" open a long, "sell"/"short" open a short.
func SideFromSignal(direction string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "buy", "long":
		return SideLong, nil
	case "sell", "short":
		return SideShort, nil
	default:
		return "", fmt.Errorf("%w: unknown signal direction %q", ErrValidation, direction)
	}
}

// PositionStatus tracks where a position is in its lifecycle. Closed is
// terminal; closed positions are permanent history and are never deleted.
type PositionStatus string

const (
	PositionStatusPending PositionStatus = "pending"
	PositionStatusOpen    PositionStatus = "open"
	PositionStatusClosed  PositionStatus = "closed"
)

// Position is one simulated trade: entry, optional risk levels, eventual exit.
// ClosePrice, ClosedAt, and PnL are set together exactly once, at the closed
// transition, and never mutated afterwards.
type Position struct {
	ID         string
	UserID     string
	Symbol     string
	Side       Side
	EntryPrice float64
	Size       float64
	StopLoss   *float64
	TakeProfit *float64
	Status     PositionStatus
	OpenedAt   time.Time
	ClosedAt   *time.Time
	ClosePrice *float64
	PnL        *float64
}

// Validate checks sizing and risk-parameter ordering. Stop-loss must sit on
// the loss side of the entry and take-profit on the profit side, consistent
// with the position's direction.
func (p Position) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: symbol required", ErrValidation)
	}
	if p.Side != SideLong && p.Side != SideShort {
		return fmt.Errorf("%w: side must be long or short", ErrValidation)
	}
	if p.EntryPrice <= 0 {
		return fmt.Errorf("%w: entry price must be positive, got %v", ErrValidation, p.EntryPrice)
	}
	if p.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %v", ErrValidation, p.Size)
	}

	if p.StopLoss != nil {
		if *p.StopLoss <= 0 {
			return fmt.Errorf("%w: stop loss must be positive", ErrValidation)
		}
		if p.Side == SideLong && *p.StopLoss >= p.EntryPrice {
			return fmt.Errorf("%w: long stop loss %v must be below entry %v", ErrValidation, *p.StopLoss, p.EntryPrice)
		}
		if p.Side == SideShort && *p.StopLoss <= p.EntryPrice {
			return fmt.Errorf("%w: short stop loss %v must be above entry %v", ErrValidation, *p.StopLoss, p.EntryPrice)
		}
	}
	if p.TakeProfit != nil {
		if *p.TakeProfit <= 0 {
			return fmt.Errorf("%w: take profit must be positive", ErrValidation)
		}
		if p.Side == SideLong && *p.TakeProfit <= p.EntryPrice {
			return fmt.Errorf("%w: long take profit %v must be above entry %v", ErrValidation, *p.TakeProfit, p.EntryPrice)
		}
		if p.Side == SideShort && *p.TakeProfit >= p.EntryPrice {
			return fmt.Errorf("%w: short take profit %v must be below entry %v", ErrValidation, *p.TakeProfit, p.EntryPrice)
		}
	}
	return nil
}

// Notional returns the capital deployed by the position (entry * size).
func (p Position) Notional() float64 {
	return p.EntryPrice * p.Size
}

// RawPnL computes the realized profit for an exit at closePrice. Longs gain
// as price rises, shorts as it falls. No rounding is applied here; callers
// round only at presentation and aggregation boundaries.
func (p Position) RawPnL(closePrice float64) float64 {
	if p.Side == SideShort {
		return (p.EntryPrice - closePrice) * p.Size
	}
	return (closePrice - p.EntryPrice) * p.Size
}

// PnLPercent returns RawPnL as a percentage of the deployed capital.
func (p Position) PnLPercent(closePrice float64) float64 {
	notional := p.Notional()
	if notional == 0 {
		return 0
	}
	return p.RawPnL(closePrice) / notional * 100
}

// StopHit reports whether live has crossed the stop-loss level against the
// position's favor. Always false when no stop loss is set.
func (p Position) StopHit(live float64) bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Side == SideShort {
		return live >= *p.StopLoss
	}
	return live <= *p.StopLoss
}

// TakeHit reports whether live has crossed the take-profit level in the
// position's favor. Always false when no take profit is set.
func (p Position) TakeHit(live float64) bool {
	if p.TakeProfit == nil {
		return false
	}
	if p.Side == SideShort {
		return live <= *p.TakeProfit
	}
	return live >= *p.TakeProfit
}

// EntryTouched reports whether a pending position's entry trigger has been
// reached: a pending long fills once the market trades at or below its
// trigger, a pending short at or above (better-or-equal fill).
func (p Position) EntryTouched(live float64) bool {
	if p.Side == SideShort {
		return live >= p.EntryPrice
	}
	return live <= p.EntryPrice
}
