package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/perpdex/internal/domain"
	"github.com/alanyoungcy/perpdex/internal/market"
	"github.com/alanyoungcy/perpdex/internal/metrics"
	"github.com/alanyoungcy/perpdex/internal/risk"
)

// DefaultMarket is used when a request names no market.
const DefaultMarket domain.Symbol = "ETH"

func normalizeMarket(s string) domain.Symbol {
	sym := market.Normalize(s)
	if sym == "" {
		return DefaultMarket
	}
	return sym
}

// SimulationService projects hypothetical opens and closes at the current
// oracle price.
type SimulationService struct {
	registry *market.Registry
	oracles  OracleSource
	bus      domain.SignalBus
	audit    domain.AuditStore
	logger   *slog.Logger
}

// NewSimulationService creates a SimulationService. bus and audit may be nil.
func NewSimulationService(
	registry *market.Registry,
	oracles OracleSource,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *SimulationService {
	return &SimulationService{
		registry: registry,
		oracles:  oracles,
		bus:      bus,
		audit:    audit,
		logger:   logger.With(slog.String("component", "simulator")),
	}
}

// SimulateOpen projects opening a position. The market must be in the risk
// registry and the leverage within its cap.
func (s *SimulationService) SimulateOpen(ctx context.Context, req domain.OpenRequest) (domain.OpenSimulation, error) {
	req.Market = normalizeMarket(string(req.Market))
	req.Side = domain.ParseSide(string(req.Side))

	sim, err := s.simulateOpen(ctx, req)
	s.observe(ctx, "open", err)
	if err != nil {
		return domain.OpenSimulation{}, err
	}

	s.emit(ctx, "simulate_open", map[string]any{
		"market":            string(sim.Market),
		"side":              string(sim.Side),
		"margin":            req.Margin,
		"leverage":          req.Leverage,
		"entry_price":       sim.EntryPrice,
		"liquidation_price": sim.LiquidationPrice,
	})
	return sim, nil
}

func (s *SimulationService) simulateOpen(ctx context.Context, req domain.OpenRequest) (domain.OpenSimulation, error) {
	cfg, ok := s.registry.Lookup(req.Market)
	if !ok {
		return domain.OpenSimulation{}, fmt.Errorf("simulation_service: %s: %w", req.Market, domain.ErrUnsupportedMarket)
	}
	if err := risk.ValidateOpen(cfg, req); err != nil {
		return domain.OpenSimulation{}, err
	}
	price, err := s.oracles.FetchBySymbol(ctx, req.Market)
	if err != nil {
		return domain.OpenSimulation{}, err
	}
	return risk.SimulateOpen(cfg, price, req)
}

// SimulateClose projects closing a position at the current mark price.
func (s *SimulationService) SimulateClose(ctx context.Context, req domain.CloseRequest) (domain.CloseSimulation, error) {
	req.Market = normalizeMarket(string(req.Market))
	req.Side = domain.ParseSide(string(req.Side))

	sim, err := s.simulateClose(ctx, req)
	s.observe(ctx, "close", err)
	if err != nil {
		return domain.CloseSimulation{}, err
	}

	s.emit(ctx, "simulate_close", map[string]any{
		"market":      string(sim.Market),
		"side":        string(sim.Side),
		"margin":      req.Margin,
		"notional":    req.Notional,
		"entry_price": req.EntryPrice,
		"mark_price":  sim.MarkPrice,
		"pnl":         sim.PnL,
		"settlement":  sim.Settlement,
	})
	return sim, nil
}

func (s *SimulationService) simulateClose(ctx context.Context, req domain.CloseRequest) (domain.CloseSimulation, error) {
	if err := risk.ValidateClose(req); err != nil {
		return domain.CloseSimulation{}, err
	}
	price, err := s.oracles.FetchBySymbol(ctx, req.Market)
	if err != nil {
		return domain.CloseSimulation{}, err
	}
	return risk.SimulateClose(price, req)
}

func (s *SimulationService) observe(ctx context.Context, kind string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case domain.IsClientError(err):
		outcome = "rejected"
	default:
		outcome = "error"
		s.logger.ErrorContext(ctx, "simulation_service: simulation failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
	metrics.Simulations.WithLabelValues(kind, outcome).Inc()
}

// emit publishes the simulation on the signal bus and appends it to the
// audit log. Both are best effort.
func (s *SimulationService) emit(ctx context.Context, event string, detail map[string]any) {
	if s.bus != nil {
		payload := make(map[string]any, len(detail)+1)
		for k, v := range detail {
			payload[k] = v
		}
		payload["event"] = event
		evt, err := json.Marshal(payload)
		if err != nil {
			s.logger.WarnContext(ctx, "simulation_service: encode event failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		} else if err := s.bus.Publish(ctx, domain.ChannelSimulations, evt); err != nil {
			s.logger.WarnContext(ctx, "simulation_service: publish event failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, event, detail); err != nil {
			s.logger.WarnContext(ctx, "simulation_service: audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}
