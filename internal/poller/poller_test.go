package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

type fakeSymbols struct {
	symbols []string
	err     error
}

func (f *fakeSymbols) SymbolsWithOpenInterest(context.Context) ([]string, error) {
	return f.symbols, f.err
}

type fakeFeed struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
}

func (f *fakeFeed) GetLatestPrice(_ context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[symbol]; ok {
		return 0, err
	}
	return f.prices[symbol], nil
}

type recordingTicker struct {
	mu    sync.Mutex
	ticks map[string]float64
	block chan struct{}
}

func (r *recordingTicker) Tick(_ context.Context, symbol string, price float64) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ticks == nil {
		r.ticks = make(map[string]float64)
	}
	r.ticks[symbol] = price
	return nil
}

func (r *recordingTicker) got(symbol string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	price, ok := r.ticks[symbol]
	return price, ok
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunTicksEverySymbol(t *testing.T) {
	feed := &fakeFeed{prices: map[string]float64{"AAPL": 101, "TSLA": 202}}
	rec := &recordingTicker{}
	p := New(&fakeSymbols{symbols: []string{"AAPL", "TSLA"}}, feed, rec, 4, discard())

	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if price, ok := rec.got("AAPL"); !ok || price != 101 {
		t.Errorf("AAPL tick = %v %v, want 101", price, ok)
	}
	if price, ok := rec.got("TSLA"); !ok || price != 202 {
		t.Errorf("TSLA tick = %v %v, want 202", price, ok)
	}
}

func TestRunSkipsFailedSymbol(t *testing.T) {
	feed := &fakeFeed{
		prices: map[string]float64{"AAPL": 101},
		errs:   map[string]error{"NVDA": domain.ErrPriceUnavailable},
	}
	rec := &recordingTicker{}
	p := New(&fakeSymbols{symbols: []string{"AAPL", "NVDA"}}, feed, rec, 4, discard())

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("one bad symbol must not fail the pass: %v", err)
	}
	if _, ok := rec.got("NVDA"); ok {
		t.Error("ticked a symbol whose price fetch failed")
	}
	if _, ok := rec.got("AAPL"); !ok {
		t.Error("healthy symbol was not ticked")
	}
}

func TestRunFailsWhenListingFails(t *testing.T) {
	wantErr := errors.New("db down")
	p := New(&fakeSymbols{err: wantErr}, &fakeFeed{}, &recordingTicker{}, 1, discard())

	if err := p.Run(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestRunEmptySymbolsIsNoop(t *testing.T) {
	rec := &recordingTicker{}
	p := New(&fakeSymbols{}, &fakeFeed{}, rec, 1, discard())

	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rec.ticks) != 0 {
		t.Errorf("ticked %d symbols with no open interest", len(rec.ticks))
	}
}

func TestRunSkipsSymbolStillInFlight(t *testing.T) {
	feed := &fakeFeed{prices: map[string]float64{"AAPL": 101}}
	block := make(chan struct{})
	rec := &recordingTicker{block: block}
	p := New(&fakeSymbols{symbols: []string{"AAPL"}}, feed, rec, 4, discard())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(context.Background())
	}()

	// Wait for the first pass to claim the symbol, then start a second.
	for !func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.inFlight["AAPL"]
	}() {
	}

	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := rec.got("AAPL"); ok {
		t.Error("second pass ran the symbol while the first still held it")
	}

	close(block)
	<-done
	if price, ok := rec.got("AAPL"); !ok || price != 101 {
		t.Errorf("first pass tick = %v %v, want 101", price, ok)
	}
}
