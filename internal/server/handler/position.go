package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// PositionService defines the methods that the position handler requires.
type PositionService interface {
	ListPositions(ctx context.Context, owner string) (domain.PositionList, error)
}

// PositionHandler serves the positions listing.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger.With(slog.String("handler", "positions")),
	}
}

// ListPositions returns risk metrics for every position of a wallet. A
// missing wallet yields an empty list.
// GET /api/positions?wallet=<base58>
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")

	list, err := h.positions.ListPositions(r.Context(), wallet)
	if err != nil {
		if msg, ok := clientMessage(err); ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "unable to load positions")
		return
	}

	writeJSON(w, http.StatusOK, list)
}
