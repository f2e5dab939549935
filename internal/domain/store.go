package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore is the durable record of every position. Close and MarkOpened
// are compare-and-set style updates: they only touch rows still in the
// expected prior status, so a racing auto-trigger close and a manual close
// cannot both win.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)

	// GetOpen returns a user's open positions, newest first.
	GetOpen(ctx context.Context, userID string) ([]Position, error)
	// ListAll returns every position for a user regardless of status.
	ListAll(ctx context.Context, userID string) ([]Position, error)
	// ListHistory returns a user's closed positions with pagination.
	ListHistory(ctx context.Context, userID string, opts ListOpts) ([]Position, error)

	// ActiveBySymbol returns all pending and open positions on a symbol,
	// across users, for tick evaluation.
	ActiveBySymbol(ctx context.Context, symbol string) ([]Position, error)
	// SymbolsWithOpenInterest returns the distinct symbols that currently
	// have at least one pending or open position.
	SymbolsWithOpenInterest(ctx context.Context) ([]string, error)

	// MarkOpened transitions a pending position to open. It returns
	// ErrConflict when the position is no longer pending and ErrNotFound
	// when the id is unknown.
	MarkOpened(ctx context.Context, id string, openedAt time.Time) error
	// Close atomically transitions a pending or open position to closed,
	// recording close price, PnL, and close timestamp in a single write.
	// It returns ErrConflict when the position is already closed and
	// ErrNotFound when the id is unknown.
	Close(ctx context.Context, id string, closePrice, pnl float64, closedAt time.Time) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of lifecycle transitions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
