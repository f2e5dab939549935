package service

import (
	"math"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// DefaultScoring is the built-in gamification curve. The exact constants are
// a product decision; what matters is that the output is deterministic for a
// given stats input and never decreases as winning trades accrue.
type DefaultScoring struct {
	// TradesPerNode controls the step width of the nodes-trained counter.
	TradesPerNode int
	// XPPerTrade is granted for every closed trade, win or lose.
	XPPerTrade int64
	// XPPerPnL is granted per unit of positive total PnL.
	XPPerPnL float64
}

// NewDefaultScoring returns the stock curve: a node every 3 trades, 25 XP per
// trade plus 10 XP per unit of positive PnL, and reward tiers at 100 / 1k /
// 10k / 100k total PnL.
func NewDefaultScoring() *DefaultScoring {
	return &DefaultScoring{
		TradesPerNode: 3,
		XPPerTrade:    25,
		XPPerPnL:      10,
	}
}

// Name returns the policy identifier.
func (d *DefaultScoring) Name() string {
	return "default"
}

// Score derives the gamification scalars from portfolio totals.
func (d *DefaultScoring) Score(stats domain.PortfolioStats) domain.Score {
	var sc domain.Score

	if d.TradesPerNode > 0 {
		sc.NodesTrained = stats.TotalTrades / d.TradesPerNode
	}

	xp := d.XPPerTrade * int64(stats.TotalTrades)
	if stats.TotalPnL > 0 {
		xp += int64(math.Floor(stats.TotalPnL * d.XPPerPnL))
	}
	sc.XPGained = xp

	sc.LifetimeRewards = rewardTier(stats.TotalPnL)
	return sc
}

// rewardTier maps cumulative PnL to a tiered reward balance. Tiers only ever
// step upward as PnL grows.
func rewardTier(totalPnL float64) float64 {
	switch {
	case totalPnL >= 100_000:
		return 10_000
	case totalPnL >= 10_000:
		return 1_000
	case totalPnL >= 1_000:
		return 100
	case totalPnL >= 100:
		return 10
	default:
		return 0
	}
}

// Compile-time interface check.
var _ domain.ScoringPolicy = (*DefaultScoring)(nil)
