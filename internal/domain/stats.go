package domain

// PortfolioStats is a derived, read-only performance summary for one user.
// It is recomputed from the user's full position set on every query and is
// never persisted.
type PortfolioStats struct {
	TotalTrades          int     `json:"total_trades"`
	WinningTrades        int     `json:"winning_trades"`
	WinRate              float64 `json:"win_rate"`
	TotalPnL             float64 `json:"total_pnl"`
	TotalPnLPercentage   float64 `json:"total_pnl_percentage"`
	BestTradePnL         float64 `json:"best_trade_pnl"`
	WorstTradePnL        float64 `json:"worst_trade_pnl"`
	TotalCapitalDeployed float64 `json:"total_capital_deployed"`
	Score                Score   `json:"score"`
}

// Score holds the gamification scalars derived from closed-position totals.
type Score struct {
	NodesTrained    int     `json:"nodes_trained"`
	XPGained        int64   `json:"xp_gained"`
	LifetimeRewards float64 `json:"lifetime_rewards"`
}

// ScoringPolicy turns portfolio totals into gamification scalars. A policy
// must be deterministic for a given input and monotonically non-decreasing
// as winning trades accrue; the exact curve is a product decision and is
// injectable at wiring time.
type ScoringPolicy interface {
	Score(stats PortfolioStats) Score
	Name() string
}
