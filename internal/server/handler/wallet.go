package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/perpdex/internal/service"
)

// WalletService defines the methods that the wallet handler requires.
type WalletService interface {
	Status(ctx context.Context, wallet string) (service.WalletStatus, error)
}

// WalletHandler serves the wallet and network summary.
type WalletHandler struct {
	wallets WalletService
	logger  *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(wallets WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, logger: logger.With(slog.String("handler", "wallet"))}
}

// GetStatus returns balances for ?wallet= (if given) and RPC health.
// GET /api/wallet
func (h *WalletHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.wallets.Status(r.Context(), r.URL.Query().Get("wallet"))
	if err != nil {
		if msg, ok := clientMessage(err); ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: wallet status failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
