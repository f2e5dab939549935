package service

import (
	"context"
	"testing"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

func seedClosed(store *memStore, id, userID string, entry, size, pnl float64) {
	now := time.Now().UTC()
	closePrice := entry + pnl/size
	store.put(domain.Position{
		ID: id, UserID: userID, Symbol: "AAPL",
		Side: domain.SideLong, EntryPrice: entry, Size: size,
		Status: domain.PositionStatusClosed, OpenedAt: now.Add(-time.Hour),
		ClosedAt: &now, ClosePrice: &closePrice, PnL: &pnl,
	})
}

func newStatsService(store *memStore) *StatsService {
	return NewStatsService(store, NewDefaultScoring(), testLogger())
}

func TestPortfolioStatsEmpty(t *testing.T) {
	svc := newStatsService(newMemStore())

	stats, err := svc.PortfolioStats(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTrades != 0 || stats.WinningTrades != 0 {
		t.Errorf("trades = %d/%d, want 0/0", stats.WinningTrades, stats.TotalTrades)
	}
	if stats.WinRate != 0 || stats.TotalPnLPercentage != 0 {
		t.Error("rates must be zero with no history, not NaN")
	}
	if stats.Score.XPGained != 0 || stats.Score.NodesTrained != 0 || stats.Score.LifetimeRewards != 0 {
		t.Errorf("score = %+v, want zero", stats.Score)
	}
}

func TestPortfolioStatsMixed(t *testing.T) {
	store := newMemStore()
	seedClosed(store, "c1", "user-1", 100, 1, 50)   // win
	seedClosed(store, "c2", "user-1", 200, 1, -20)  // loss
	seedClosed(store, "c3", "user-1", 50, 2, 30)    // win
	seedClosed(store, "c4", "user-1", 100, 1, -100) // loss

	// Open and pending positions contribute capital but not trades.
	seedOpen(store, "o1", "user-1", "TSLA", 300)
	store.put(domain.Position{
		ID: "q1", UserID: "user-1", Symbol: "NVDA",
		Side: domain.SideLong, EntryPrice: 500, Size: 1,
		Status: domain.PositionStatusPending, OpenedAt: time.Now().UTC(),
	})

	stats, err := newStatsService(store).PortfolioStats(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTrades != 4 {
		t.Errorf("total trades = %d, want 4", stats.TotalTrades)
	}
	if stats.WinningTrades != 2 {
		t.Errorf("winning trades = %d, want 2", stats.WinningTrades)
	}
	if stats.WinRate != 50 {
		t.Errorf("win rate = %v, want 50", stats.WinRate)
	}
	if stats.TotalPnL != -40 {
		t.Errorf("total pnl = %v, want -40", stats.TotalPnL)
	}
	if stats.BestTradePnL != 50 {
		t.Errorf("best trade = %v, want 50", stats.BestTradePnL)
	}
	if stats.WorstTradePnL != -100 {
		t.Errorf("worst trade = %v, want -100", stats.WorstTradePnL)
	}
	// 100 + 200 + 100 + 100 closed + 300 open + 500 pending.
	if stats.TotalCapitalDeployed != 1300 {
		t.Errorf("capital deployed = %v, want 1300", stats.TotalCapitalDeployed)
	}
	wantPct := domain.Round2(-40.0 / 1300.0 * 100)
	if stats.TotalPnLPercentage != wantPct {
		t.Errorf("pnl pct = %v, want %v", stats.TotalPnLPercentage, wantPct)
	}
}

func TestPortfolioStatsAllLosses(t *testing.T) {
	store := newMemStore()
	seedClosed(store, "c1", "user-1", 100, 1, -10)
	seedClosed(store, "c2", "user-1", 100, 1, -5)

	stats, err := newStatsService(store).PortfolioStats(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.WinRate != 0 {
		t.Errorf("win rate = %v, want 0", stats.WinRate)
	}
	// Best is still the least-bad trade, not zero.
	if stats.BestTradePnL != -5 {
		t.Errorf("best trade = %v, want -5", stats.BestTradePnL)
	}
	if stats.WorstTradePnL != -10 {
		t.Errorf("worst trade = %v, want -10", stats.WorstTradePnL)
	}
}

func TestPortfolioStatsIgnoresOtherUsers(t *testing.T) {
	store := newMemStore()
	seedClosed(store, "c1", "user-1", 100, 1, 50)
	seedClosed(store, "c2", "user-2", 100, 1, 999)

	stats, err := newStatsService(store).PortfolioStats(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTrades != 1 || stats.TotalPnL != 50 {
		t.Errorf("stats leaked across users: %+v", stats)
	}
}

func TestDefaultScoringDeterministic(t *testing.T) {
	policy := NewDefaultScoring()
	in := domain.PortfolioStats{TotalTrades: 7, WinningTrades: 4, TotalPnL: 1234.56}

	first := policy.Score(in)
	for i := 0; i < 5; i++ {
		if got := policy.Score(in); got != first {
			t.Fatalf("score not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestDefaultScoringMonotonic(t *testing.T) {
	policy := NewDefaultScoring()

	var prev domain.Score
	for trades := 0; trades <= 30; trades++ {
		in := domain.PortfolioStats{
			TotalTrades: trades,
			TotalPnL:    float64(trades) * 40,
		}
		got := policy.Score(in)
		if got.XPGained < prev.XPGained {
			t.Fatalf("xp decreased at %d trades: %d -> %d", trades, prev.XPGained, got.XPGained)
		}
		if got.NodesTrained < prev.NodesTrained {
			t.Fatalf("nodes decreased at %d trades", trades)
		}
		if got.LifetimeRewards < prev.LifetimeRewards {
			t.Fatalf("rewards decreased at %d trades", trades)
		}
		prev = got
	}
}

func TestDefaultScoringNoXPForLosses(t *testing.T) {
	policy := NewDefaultScoring()

	losing := policy.Score(domain.PortfolioStats{TotalTrades: 2, TotalPnL: -500})
	flat := policy.Score(domain.PortfolioStats{TotalTrades: 2, TotalPnL: 0})
	if losing.XPGained != flat.XPGained {
		t.Errorf("negative pnl changed xp: %d vs %d", losing.XPGained, flat.XPGained)
	}
	if losing.LifetimeRewards != 0 {
		t.Errorf("rewards = %v for losing book, want 0", losing.LifetimeRewards)
	}
}
