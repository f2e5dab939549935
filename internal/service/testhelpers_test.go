package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory PositionStore with the same compare-and-set
// transition semantics as the postgres implementation.
type memStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
}

func newMemStore() *memStore {
	return &memStore{positions: make(map[string]domain.Position)}
}

func (m *memStore) Create(_ context.Context, pos domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.ID] = pos
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func (m *memStore) GetOpen(_ context.Context, userID string) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Position
	for _, p := range m.positions {
		if p.UserID == userID && p.Status == domain.PositionStatusOpen {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context, userID string) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Position
	for _, p := range m.positions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListHistory(_ context.Context, userID string, _ domain.ListOpts) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Position
	for _, p := range m.positions {
		if p.UserID == userID && p.Status == domain.PositionStatusClosed {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ActiveBySymbol(_ context.Context, symbol string) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Position
	for _, p := range m.positions {
		if p.Symbol == symbol && p.Status != domain.PositionStatusClosed {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) SymbolsWithOpenInterest(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, p := range m.positions {
		if p.Status != domain.PositionStatusClosed && !seen[p.Symbol] {
			seen[p.Symbol] = true
			out = append(out, p.Symbol)
		}
	}
	return out, nil
}

func (m *memStore) MarkOpened(_ context.Context, id string, openedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if pos.Status != domain.PositionStatusPending {
		return domain.ErrConflict
	}
	pos.Status = domain.PositionStatusOpen
	pos.OpenedAt = openedAt
	m.positions[id] = pos
	return nil
}

func (m *memStore) Close(_ context.Context, id string, closePrice, pnl float64, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if pos.Status == domain.PositionStatusClosed {
		return domain.ErrConflict
	}
	pos.Status = domain.PositionStatusClosed
	pos.ClosePrice = &closePrice
	pos.PnL = &pnl
	pos.ClosedAt = &closedAt
	m.positions[id] = pos
	return nil
}

// put seeds a position directly, bypassing the service layer.
func (m *memStore) put(pos domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.ID] = pos
}

func (m *memStore) get(id string) domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[id]
}

func (m *memStore) all() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, pos)
	}
	return out
}

var _ domain.PositionStore = (*memStore)(nil)

// fakeFeed serves canned prices and per-symbol failures.
type fakeFeed struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		prices: make(map[string]float64),
		errs:   make(map[string]error),
	}
}

func (f *fakeFeed) set(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
	delete(f.errs, symbol)
}

func (f *fakeFeed) fail(symbol string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[symbol] = err
}

func (f *fakeFeed) GetLatestPrice(_ context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[symbol]; ok {
		return 0, err
	}
	price, ok := f.prices[symbol]
	if !ok {
		return 0, domain.ErrPriceUnavailable
	}
	return price, nil
}

var _ domain.PriceFeed = (*fakeFeed)(nil)

// fakeLocks is an in-process LockManager.
type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

var _ domain.LockManager = (*fakeLocks)(nil)

func newTestService(store domain.PositionStore, feed domain.PriceFeed) *PositionService {
	return NewPositionService(store, feed, nil, nil, nil, testLogger())
}

func fptr(v float64) *float64 { return &v }
