package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, user_id, symbol, side, entry_price, size,
	stop_loss, take_profit, status, opened_at, closed_at, close_price, pnl`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var side, status string

	err := row.Scan(
		&p.ID, &p.UserID, &p.Symbol, &side,
		&p.EntryPrice, &p.Size,
		&p.StopLoss, &p.TakeProfit,
		&status,
		&p.OpenedAt, &p.ClosedAt, &p.ClosePrice, &p.PnL,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Side = domain.Side(side)
	p.Status = domain.PositionStatus(status)
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Create inserts a new position.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, user_id, symbol, side, entry_price, size,
			stop_loss, take_profit, status, opened_at,
			closed_at, close_price, pnl, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.UserID, p.Symbol, string(p.Side),
		p.EntryPrice, p.Size,
		p.StopLoss, p.TakeProfit,
		string(p.Status), p.OpenedAt,
		p.ClosedAt, p.ClosePrice, p.PnL,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// GetOpen returns all open positions for the given user, newest first.
func (s *PositionStore) GetOpen(ctx context.Context, userID string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE user_id = $1 AND status = 'open'
		 ORDER BY opened_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get open positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}
	return positions, nil
}

// ListAll returns every position for the given user regardless of status.
func (s *PositionStore) ListAll(ctx context.Context, userID string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE user_id = $1
		 ORDER BY opened_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// ListHistory returns closed positions for the given user with pagination and
// optional time filtering.
func (s *PositionStore) ListHistory(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions
		WHERE user_id = $1 AND status = 'closed'`
	args := []any{userID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND closed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND closed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY closed_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list position history: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan position history: %w", err)
	}
	return positions, nil
}

// ActiveBySymbol returns all pending and open positions on a symbol, across
// users, for tick evaluation.
func (s *PositionStore) ActiveBySymbol(ctx context.Context, symbol string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE symbol = $1 AND status IN ('pending', 'open')
		 ORDER BY opened_at ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("postgres: active positions for %s: %w", symbol, err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active positions: %w", err)
	}
	return positions, nil
}

// SymbolsWithOpenInterest returns the distinct symbols that currently have at
// least one pending or open position.
func (s *PositionStore) SymbolsWithOpenInterest(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT symbol FROM positions WHERE status IN ('pending', 'open')`)
	if err != nil {
		return nil, fmt.Errorf("postgres: symbols with open interest: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("postgres: scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// MarkOpened transitions a pending position to open with a compare-and-set on
// the prior status.
func (s *PositionStore) MarkOpened(ctx context.Context, id string, openedAt time.Time) error {
	const query = `
		UPDATE positions SET
			status     = 'open',
			opened_at  = $2,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	tag, err := s.pool.Exec(ctx, query, id, openedAt)
	if err != nil {
		return fmt.Errorf("postgres: mark position %s opened: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

// Close atomically transitions a pending or open position to closed, writing
// close price, PnL, and close timestamp in a single statement. The status
// guard makes a second close lose the race and report ErrConflict.
func (s *PositionStore) Close(ctx context.Context, id string, closePrice, pnl float64, closedAt time.Time) error {
	const query = `
		UPDATE positions SET
			status      = 'closed',
			close_price = $2,
			pnl         = $3,
			closed_at   = $4,
			updated_at  = NOW()
		WHERE id = $1 AND status IN ('pending', 'open')`

	tag, err := s.pool.Exec(ctx, query, id, closePrice, pnl, closedAt)
	if err != nil {
		return fmt.Errorf("postgres: close position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

// missOrConflict disambiguates a zero-row CAS update: an existing row means
// the position was in the wrong status, a missing row means an unknown id.
func (s *PositionStore) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM positions WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("postgres: check position %s: %w", id, err)
	}
	if exists {
		return domain.ErrConflict
	}
	return domain.ErrNotFound
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
