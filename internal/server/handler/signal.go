package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// SignalExecutor turns an accepted signal proposal into a position.
type SignalExecutor interface {
	Open(ctx context.Context, userID string, sig domain.SignalProposal) (domain.Position, error)
}

// QuotaThrottle gates guest actions against a per-day limit.
type QuotaThrottle interface {
	CheckAndIncrement(ctx context.Context, userID string, today time.Time) (bool, error)
	Refund(ctx context.Context, userID string, today time.Time) error
	Limit() int
}

// SignalHandler serves the signal execution entry point.
type SignalHandler struct {
	executor SignalExecutor
	quota    QuotaThrottle
	logger   *slog.Logger
}

// NewSignalHandler creates a SignalHandler. quota may be nil, in which case
// guest requests are not throttled.
func NewSignalHandler(executor SignalExecutor, quota QuotaThrottle, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		executor: executor,
		quota:    quota,
		logger:   logHandler(logger, "signal"),
	}
}

// ExecuteSignal validates a signal proposal and opens a position from it.
// Guests consume a daily quota slot before any position work happens; the
// slot is refunded if the open fails downstream.
// POST /api/signals/execute
func (h *SignalHandler) ExecuteSignal(w http.ResponseWriter, r *http.Request) {
	var sig domain.SignalProposal
	if err := decodeJSON(r, &sig); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, guest := callerIdentity(r)
	now := time.Now().UTC()

	if guest && h.quota != nil {
		allowed, err := h.quota.CheckAndIncrement(r.Context(), userID, now)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "quota check failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !allowed {
			writeDomainError(w, domain.ErrQuotaExceeded)
			return
		}
	}

	pos, err := h.executor.Open(r.Context(), userID, sig)
	if err != nil {
		if guest && h.quota != nil {
			// The slot was consumed but no position exists; give it back.
			if rerr := h.quota.Refund(r.Context(), userID, now); rerr != nil {
				h.logger.ErrorContext(r.Context(), "quota refund failed",
					slog.String("user_id", userID),
					slog.String("error", rerr.Error()),
				)
			}
		}
		if !errors.Is(err, domain.ErrValidation) {
			h.logger.ErrorContext(r.Context(), "execute signal failed",
				slog.String("user_id", userID),
				slog.String("symbol", sig.Symbol),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}
