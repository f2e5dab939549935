package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// StatsProvider computes portfolio statistics on demand.
type StatsProvider interface {
	PortfolioStats(ctx context.Context, userID string) (domain.PortfolioStats, error)
}

// PortfolioHandler serves the portfolio statistics endpoint.
type PortfolioHandler struct {
	stats  StatsProvider
	logger *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(stats StatsProvider, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		stats:  stats,
		logger: logHandler(logger, "portfolio"),
	}
}

// GetStats returns aggregate statistics and gamification scores for a user.
// GET /api/portfolio/stats?user=
func (h *PortfolioHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	user := queryUser(r)

	stats, err := h.stats.PortfolioStats(r.Context(), user)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "portfolio stats failed",
			slog.String("user_id", user),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
