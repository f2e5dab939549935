package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// StatsService derives a read-only performance summary and gamification
// scores from a user's position set. It is a pure recomputation over the
// store on every query: no running totals are maintained, so there is no
// second source of truth to drift. It never mutates positions.
type StatsService struct {
	positions domain.PositionStore
	scoring   domain.ScoringPolicy
	logger    *slog.Logger
}

// NewStatsService creates a StatsService using the given scoring policy.
func NewStatsService(positions domain.PositionStore, scoring domain.ScoringPolicy, logger *slog.Logger) *StatsService {
	return &StatsService{
		positions: positions,
		scoring:   scoring,
		logger:    logger.With(slog.String("component", "stats_service")),
	}
}

// PortfolioStats computes the user's aggregate statistics from their full
// position set at call time. Monetary totals are rounded to 2 decimal places
// at this aggregation boundary only; intermediate sums are unrounded.
func (s *StatsService) PortfolioStats(ctx context.Context, userID string) (domain.PortfolioStats, error) {
	all, err := s.positions.ListAll(ctx, userID)
	if err != nil {
		return domain.PortfolioStats{}, fmt.Errorf("stats_service: list positions for %q: %w", userID, err)
	}

	var stats domain.PortfolioStats
	var bestSet, worstSet bool

	for _, pos := range all {
		// Capital at risk or previously at risk: every position counts.
		stats.TotalCapitalDeployed += pos.Notional()

		if pos.Status != domain.PositionStatusClosed || pos.PnL == nil {
			continue
		}

		pnl := *pos.PnL
		stats.TotalTrades++
		stats.TotalPnL += pnl
		if pnl > 0 {
			stats.WinningTrades++
		}
		if !bestSet || pnl > stats.BestTradePnL {
			stats.BestTradePnL = pnl
			bestSet = true
		}
		if !worstSet || pnl < stats.WorstTradePnL {
			stats.WorstTradePnL = pnl
			worstSet = true
		}
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	}
	if stats.TotalCapitalDeployed > 0 {
		stats.TotalPnLPercentage = stats.TotalPnL / stats.TotalCapitalDeployed * 100
	}

	stats.TotalPnL = domain.Round2(stats.TotalPnL)
	stats.TotalPnLPercentage = domain.Round2(stats.TotalPnLPercentage)
	stats.BestTradePnL = domain.Round2(stats.BestTradePnL)
	stats.WorstTradePnL = domain.Round2(stats.WorstTradePnL)
	stats.TotalCapitalDeployed = domain.Round2(stats.TotalCapitalDeployed)
	stats.WinRate = domain.Round2(stats.WinRate)

	stats.Score = s.scoring.Score(stats)
	return stats, nil
}
