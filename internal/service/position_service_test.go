package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

func TestOpenMarketFill(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	feed.set("AAPL", 187.5)
	svc := newTestService(store, feed)

	pos, err := svc.Open(context.Background(), "user-1", domain.SignalProposal{
		Symbol:    "AAPL",
		Direction: "buy",
		Size:      2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if pos.Status != domain.PositionStatusOpen {
		t.Errorf("status = %s, want open", pos.Status)
	}
	if pos.EntryPrice != 187.5 {
		t.Errorf("entry = %v, want live price 187.5", pos.EntryPrice)
	}
	if pos.Side != domain.SideLong {
		t.Errorf("side = %s, want long", pos.Side)
	}
	if pos.PnL != nil || pos.ClosePrice != nil || pos.ClosedAt != nil {
		t.Error("close fields must be nil on an open position")
	}

	// Persisted before reported.
	stored := store.get(pos.ID)
	if stored.ID != pos.ID || stored.Status != domain.PositionStatusOpen {
		t.Error("position not persisted before Open returned")
	}
}

func TestOpenPendingBelowMarket(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	feed.set("AAPL", 190)
	svc := newTestService(store, feed)

	// Long with an entry trigger below the live price waits.
	pos, err := svc.Open(context.Background(), "user-1", domain.SignalProposal{
		Symbol:     "AAPL",
		Direction:  "long",
		EntryPrice: 185,
		Size:       1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if pos.Status != domain.PositionStatusPending {
		t.Fatalf("status = %s, want pending", pos.Status)
	}
	if pos.EntryPrice != 185 {
		t.Errorf("entry = %v, want trigger 185", pos.EntryPrice)
	}

	// Tick above the trigger: still pending.
	if err := svc.Tick(context.Background(), "AAPL", 188); err != nil {
		t.Fatal(err)
	}
	if got := store.get(pos.ID).Status; got != domain.PositionStatusPending {
		t.Errorf("status after non-trigger tick = %s, want pending", got)
	}

	// Tick at the trigger: opens at the trigger price, no PnL effect.
	if err := svc.Tick(context.Background(), "AAPL", 185); err != nil {
		t.Fatal(err)
	}
	stored := store.get(pos.ID)
	if stored.Status != domain.PositionStatusOpen {
		t.Errorf("status after trigger tick = %s, want open", stored.Status)
	}
	if stored.EntryPrice != 185 {
		t.Errorf("entry after trigger = %v, want 185", stored.EntryPrice)
	}
	if stored.PnL != nil {
		t.Error("trigger fill must not set PnL")
	}
}

func TestOpenImmediateWhenTriggerTouched(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	feed.set("AAPL", 184)
	svc := newTestService(store, feed)

	// The live price already satisfies the long trigger: open immediately.
	pos, err := svc.Open(context.Background(), "user-1", domain.SignalProposal{
		Symbol:     "AAPL",
		Direction:  "buy",
		EntryPrice: 185,
		Size:       1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if pos.Status != domain.PositionStatusOpen {
		t.Errorf("status = %s, want open", pos.Status)
	}
}

func TestOpenValidation(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	feed.set("AAPL", 100)
	svc := newTestService(store, feed)
	ctx := context.Background()

	tests := []struct {
		name string
		user string
		sig  domain.SignalProposal
	}{
		{"zero size", "u", domain.SignalProposal{Symbol: "AAPL", Direction: "buy", Size: 0}},
		{"negative size", "u", domain.SignalProposal{Symbol: "AAPL", Direction: "buy", Size: -1}},
		{"bad direction", "u", domain.SignalProposal{Symbol: "AAPL", Direction: "hold", Size: 1}},
		{"stop on wrong side", "u", domain.SignalProposal{Symbol: "AAPL", Direction: "buy", Size: 1, StopLoss: fptr(150)}},
		{"missing user", "", domain.SignalProposal{Symbol: "AAPL", Direction: "buy", Size: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Open(ctx, tt.user, tt.sig)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestOpenFeedDown(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	feed.fail("AAPL", domain.ErrPriceUnavailable)
	svc := newTestService(store, feed)

	_, err := svc.Open(context.Background(), "user-1", domain.SignalProposal{
		Symbol: "AAPL", Direction: "buy", Size: 1,
	})
	if !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Errorf("err = %v, want ErrPriceUnavailable", err)
	}
}

func TestTickStopLossAutoClose(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	svc := newTestService(store, feed)

	// Long entry=100 stop=95, size=2. A tick at 94 closes at the live price.
	store.put(domain.Position{
		ID: "p1", UserID: "user-1", Symbol: "AAPL",
		Side: domain.SideLong, EntryPrice: 100, Size: 2,
		StopLoss: fptr(95), Status: domain.PositionStatusOpen,
		OpenedAt: time.Now().UTC(),
	})

	if err := svc.Tick(context.Background(), "AAPL", 94); err != nil {
		t.Fatal(err)
	}

	pos := store.get("p1")
	if pos.Status != domain.PositionStatusClosed {
		t.Fatalf("status = %s, want closed", pos.Status)
	}
	if pos.ClosePrice == nil || *pos.ClosePrice != 94 {
		t.Errorf("close price = %v, want 94", pos.ClosePrice)
	}
	if pos.PnL == nil || *pos.PnL != (94-100)*2 {
		t.Errorf("pnl = %v, want -12", pos.PnL)
	}
	if pos.ClosedAt == nil {
		t.Error("closed_at not set")
	}
}

func TestTickTakeProfitShort(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	svc := newTestService(store, feed)

	store.put(domain.Position{
		ID: "p1", UserID: "user-1", Symbol: "TSLA",
		Side: domain.SideShort, EntryPrice: 200, Size: 1,
		TakeProfit: fptr(180), Status: domain.PositionStatusOpen,
		OpenedAt: time.Now().UTC(),
	})

	if err := svc.Tick(context.Background(), "TSLA", 179); err != nil {
		t.Fatal(err)
	}

	pos := store.get("p1")
	if pos.Status != domain.PositionStatusClosed {
		t.Fatalf("status = %s, want closed", pos.Status)
	}
	if pos.PnL == nil || *pos.PnL != 200-179 {
		t.Errorf("pnl = %v, want 21", pos.PnL)
	}
}

func TestTickClosesMultipleIndependently(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	svc := newTestService(store, feed)

	store.put(domain.Position{
		ID: "p1", UserID: "u1", Symbol: "AAPL",
		Side: domain.SideLong, EntryPrice: 100, Size: 1,
		StopLoss: fptr(95), Status: domain.PositionStatusOpen, OpenedAt: time.Now().UTC(),
	})
	store.put(domain.Position{
		ID: "p2", UserID: "u2", Symbol: "AAPL",
		Side: domain.SideShort, EntryPrice: 90, Size: 1,
		StopLoss: fptr(93), Status: domain.PositionStatusOpen, OpenedAt: time.Now().UTC(),
	})
	store.put(domain.Position{
		ID: "p3", UserID: "u1", Symbol: "AAPL",
		Side: domain.SideLong, EntryPrice: 100, Size: 1,
		Status: domain.PositionStatusOpen, OpenedAt: time.Now().UTC(),
	})

	// 94 breaches p1's long stop (95) and p2's short stop (93); p3 has no
	// risk levels and stays open.
	if err := svc.Tick(context.Background(), "AAPL", 94); err != nil {
		t.Fatal(err)
	}

	if got := store.get("p1").Status; got != domain.PositionStatusClosed {
		t.Errorf("p1 status = %s, want closed", got)
	}
	if got := store.get("p2").Status; got != domain.PositionStatusClosed {
		t.Errorf("p2 status = %s, want closed", got)
	}
	if got := store.get("p3").Status; got != domain.PositionStatusOpen {
		t.Errorf("p3 status = %s, want open", got)
	}
}

func TestTickIdempotentOnClosed(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	svc := newTestService(store, feed)

	store.put(domain.Position{
		ID: "p1", UserID: "u1", Symbol: "AAPL",
		Side: domain.SideLong, EntryPrice: 100, Size: 1,
		StopLoss: fptr(95), Status: domain.PositionStatusOpen, OpenedAt: time.Now().UTC(),
	})

	if err := svc.Tick(context.Background(), "AAPL", 94); err != nil {
		t.Fatal(err)
	}
	first := store.get("p1")

	// A later, deeper tick must not touch the already-closed position.
	if err := svc.Tick(context.Background(), "AAPL", 80); err != nil {
		t.Fatal(err)
	}
	second := store.get("p1")

	if *first.PnL != *second.PnL || *first.ClosePrice != *second.ClosePrice || !first.ClosedAt.Equal(*second.ClosedAt) {
		t.Error("closed position was reprocessed by a later tick")
	}
}

func TestCloseManually(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	svc := newTestService(store, feed)

	store.put(domain.Position{
		ID: "p1", UserID: "user-1", Symbol: "AAPL",
		Side: domain.SideLong, EntryPrice: 100, Size: 2,
		Status: domain.PositionStatusOpen, OpenedAt: time.Now().UTC(),
	})

	pos, err := svc.CloseManually(context.Background(), "user-1", "p1", 110)
	if err != nil {
		t.Fatal(err)
	}
	if pos.PnL == nil || *pos.PnL != 20 {
		t.Errorf("pnl = %v, want 20", pos.PnL)
	}
	if pos.ClosePrice == nil || *pos.ClosePrice != 110 {
		t.Errorf("close price = %v, want 110", pos.ClosePrice)
	}

	// Second close is a conflict and changes nothing.
	_, err = svc.CloseManually(context.Background(), "user-1", "p1", 120)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second close err = %v, want ErrConflict", err)
	}
	if stored := store.get("p1"); *stored.ClosePrice != 110 || *stored.PnL != 20 {
		t.Error("second close attempt mutated the position")
	}
}

func TestCloseManuallyAtMarket(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	feed.set("AAPL", 90)
	svc := newTestService(store, feed)

	store.put(domain.Position{
		ID: "p1", UserID: "user-1", Symbol: "AAPL",
		Side: domain.SideShort, EntryPrice: 100, Size: 1,
		Status: domain.PositionStatusOpen, OpenedAt: time.Now().UTC(),
	})

	// Zero close price means "close at the live price".
	pos, err := svc.CloseManually(context.Background(), "user-1", "p1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if pos.PnL == nil || *pos.PnL != 10 {
		t.Errorf("pnl = %v, want 10", pos.PnL)
	}
}

func TestCloseManuallyErrors(t *testing.T) {
	store := newMemStore()
	feed := newFakeFeed()
	feed.fail("AAPL", domain.ErrPriceUnavailable)
	svc := newTestService(store, feed)

	store.put(domain.Position{
		ID: "p1", UserID: "user-1", Symbol: "AAPL",
		Side: domain.SideLong, EntryPrice: 100, Size: 1,
		Status: domain.PositionStatusOpen, OpenedAt: time.Now().UTC(),
	})

	if _, err := svc.CloseManually(context.Background(), "user-1", "missing", 100); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
	// Foreign positions look like they do not exist.
	if _, err := svc.CloseManually(context.Background(), "user-2", "p1", 100); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign position err = %v, want ErrNotFound", err)
	}
	// Market close with the feed down is surfaced.
	if _, err := svc.CloseManually(context.Background(), "user-1", "p1", 0); !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Errorf("feed-down err = %v, want ErrPriceUnavailable", err)
	}
	// And must not have closed the position.
	if got := store.get("p1").Status; got != domain.PositionStatusOpen {
		t.Errorf("status after failed close = %s, want open", got)
	}
}
