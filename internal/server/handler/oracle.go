package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// OracleService defines the methods that the oracle handler requires.
type OracleService interface {
	Lookup(ctx context.Context, market, oracleKey string) (domain.OraclePrice, error)
}

// OracleHandler serves single oracle price lookups.
type OracleHandler struct {
	oracles OracleService
	logger  *slog.Logger
}

// NewOracleHandler creates an OracleHandler.
func NewOracleHandler(oracles OracleService, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{oracles: oracles, logger: logger.With(slog.String("handler", "oracle"))}
}

// GetPrice returns the normalized price for a market, or for an explicit
// feed account labelled with the market.
// GET /api/oracle?market=ETH[&oracle=<base58>]
func (h *OracleHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	price, err := h.oracles.Lookup(r.Context(), q.Get("market"), q.Get("oracle"))
	if err != nil {
		if msg, ok := clientMessage(err); ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		h.logger.WarnContext(r.Context(), "handler: oracle lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "oracle lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, price)
}
