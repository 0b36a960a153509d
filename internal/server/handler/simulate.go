package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// SimulationService defines the methods that the simulation handler requires.
type SimulationService interface {
	SimulateOpen(ctx context.Context, req domain.OpenRequest) (domain.OpenSimulation, error)
	SimulateClose(ctx context.Context, req domain.CloseRequest) (domain.CloseSimulation, error)
}

// SimulateHandler serves pre-trade simulations.
type SimulateHandler struct {
	sims   SimulationService
	logger *slog.Logger
}

// NewSimulateHandler creates a SimulateHandler.
func NewSimulateHandler(sims SimulationService, logger *slog.Logger) *SimulateHandler {
	return &SimulateHandler{
		sims:   sims,
		logger: logger.With(slog.String("handler", "simulate")),
	}
}

type openRequest struct {
	Market   string `json:"market"`
	Side     string `json:"side"`
	Margin   number `json:"margin"`
	Leverage number `json:"leverage"`
}

type closeRequest struct {
	Market     string `json:"market"`
	Side       string `json:"side"`
	Margin     number `json:"margin"`
	Notional   number `json:"notional"`
	EntryPrice number `json:"entryPrice"`
}

// Open projects the entry and liquidation price of a new position.
// POST /api/simulate/open
func (h *SimulateHandler) Open(w http.ResponseWriter, r *http.Request) {
	var body openRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sim, err := h.sims.SimulateOpen(r.Context(), domain.OpenRequest{
		Market:   domain.Symbol(body.Market),
		Side:     domain.Side(body.Side),
		Margin:   float64(body.Margin),
		Leverage: float64(body.Leverage),
	})
	if err != nil {
		h.fail(w, r, "open", err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

// Close projects the settlement of closing a position at the mark price.
// POST /api/simulate/close
func (h *SimulateHandler) Close(w http.ResponseWriter, r *http.Request) {
	var body closeRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sim, err := h.sims.SimulateClose(r.Context(), domain.CloseRequest{
		Market:     domain.Symbol(body.Market),
		Side:       domain.Side(body.Side),
		Margin:     float64(body.Margin),
		Notional:   float64(body.Notional),
		EntryPrice: float64(body.EntryPrice),
	})
	if err != nil {
		h.fail(w, r, "close", err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

// fail reports simulation errors as 400s. Unexpected failures are logged and
// get a generic message.
func (h *SimulateHandler) fail(w http.ResponseWriter, r *http.Request, kind string, err error) {
	if msg, ok := clientMessage(err); ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: simulation failed",
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusBadRequest, "simulation failed")
}
