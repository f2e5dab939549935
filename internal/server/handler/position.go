package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/papertrader/internal/domain"
	"github.com/alanyoungcy/papertrader/internal/service"
)

// PositionService defines the lifecycle methods the position handler requires.
type PositionService interface {
	CloseManually(ctx context.Context, userID, positionID string, closePrice float64) (domain.Position, error)
	GetOpen(ctx context.Context, userID string) ([]domain.Position, error)
	History(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, error)
}

// BulkCloser drives the kill switch.
type BulkCloser interface {
	CloseAll(ctx context.Context, userID string) (service.KillReport, error)
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	positions PositionService
	killer    BulkCloser
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given services.
func NewPositionHandler(positions PositionService, killer BulkCloser, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		killer:    killer,
		logger:    logHandler(logger, "position"),
	}
}

// closeRequest optionally pins the close to an explicit price instead of the
// live feed quote.
type closeRequest struct {
	Price float64 `json:"price"`
}

// ClosePosition closes one position at the live price, or at the explicit
// price in the request body when given.
// POST /api/positions/{id}/close
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "position id required")
		return
	}

	var req closeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, _ := callerIdentity(r)
	pos, err := h.positions.CloseManually(r.Context(), userID, id, req.Price)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrConflict) {
			h.logger.ErrorContext(r.Context(), "close position failed",
				slog.String("position_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

// CloseAll triggers the kill switch for the caller and returns its report.
// POST /api/positions/close-all
func (h *PositionHandler) CloseAll(w http.ResponseWriter, r *http.Request) {
	userID, _ := callerIdentity(r)

	report, err := h.killer.CloseAll(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			h.logger.ErrorContext(r.Context(), "close all failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// listPositionsResponse wraps position list responses.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns the user's pending and open positions.
// GET /api/positions?user=
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	user := queryUser(r)

	positions, err := h.positions.GetOpen(r.Context(), user)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list positions failed",
			slog.String("user_id", user),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// ListHistory returns the user's closed positions, newest first.
// GET /api/positions/history?user=&limit=&offset=&since=&until=
func (h *PositionHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	user := queryUser(r)
	opts := parseListOpts(r)

	positions, err := h.positions.History(r.Context(), user, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list history failed",
			slog.String("user_id", user),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}
