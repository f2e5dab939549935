package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// Ticker applies one live price observation to every active position on a
// symbol, filling pending entries and closing triggered exits.
type Ticker interface {
	Tick(ctx context.Context, symbol string, livePrice float64) error
}

// SymbolSource reports which symbols currently have pending or open
// positions and therefore need price observation.
type SymbolSource interface {
	SymbolsWithOpenInterest(ctx context.Context) ([]string, error)
}

// Poller drives the trigger evaluation loop: on every interval it fetches a
// live price for each symbol with open interest and hands it to the Ticker.
// Symbols whose feed fetch fails are skipped for that pass and retried on the
// next one; one bad symbol never stalls the rest.
type Poller struct {
	symbols     SymbolSource
	feed        domain.PriceFeed
	ticker      Ticker
	logger      *slog.Logger
	concurrency int

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates a Poller. concurrency bounds how many symbols are evaluated in
// parallel per pass; values below 1 fall back to 1.
func New(symbols SymbolSource, feed domain.PriceFeed, ticker Ticker, concurrency int, logger *slog.Logger) *Poller {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Poller{
		symbols:     symbols,
		feed:        feed,
		ticker:      ticker,
		logger:      logger.With(slog.String("component", "poller")),
		concurrency: concurrency,
		inFlight:    make(map[string]bool),
	}
}

// Run executes a single polling pass over every symbol with open interest.
// Per-symbol failures are logged and skipped; only listing the symbols can
// fail the pass as a whole.
func (p *Poller) Run(ctx context.Context) error {
	symbols, err := p.symbols.SymbolsWithOpenInterest(ctx)
	if err != nil {
		return fmt.Errorf("poller: list symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, symbol := range symbols {
		if !p.claim(symbol) {
			// A previous pass is still working this symbol.
			continue
		}
		g.Go(func() error {
			defer p.release(symbol)
			p.poll(ctx, symbol)
			return nil
		})
	}
	return g.Wait()
}

// poll fetches one price and applies it. Failures are logged, never fatal.
func (p *Poller) poll(ctx context.Context, symbol string) {
	price, err := p.feed.GetLatestPrice(ctx, symbol)
	if err != nil {
		p.logger.WarnContext(ctx, "price fetch failed, skipping symbol",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := p.ticker.Tick(ctx, symbol, price); err != nil {
		p.logger.ErrorContext(ctx, "tick failed",
			slog.String("symbol", symbol),
			slog.Float64("price", price),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Poller) claim(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[symbol] {
		return false
	}
	p.inFlight[symbol] = true
	return true
}

func (p *Poller) release(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, symbol)
}

// RunLoop runs polling passes on a repeating interval until the context is
// cancelled.
func (p *Poller) RunLoop(ctx context.Context, interval time.Duration) error {
	// Run immediately on start.
	if err := p.Run(ctx); err != nil {
		p.logger.Error("polling pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.Run(ctx); err != nil {
				p.logger.Error("polling pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
