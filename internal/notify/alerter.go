package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// positionsEvent is the subset of a positions_listed event the alerter reads.
type positionsEvent struct {
	Event     string                   `json:"event"`
	Owner     string                   `json:"owner"`
	Positions []domain.PositionMetrics `json:"positions"`
}

// RiskAlerter notifies when a position enters one of the alert levels. A
// position alerts once per entry; it re-arms after leaving the alert levels or
// dropping out of its owner's listing.
type RiskAlerter struct {
	bus      domain.SignalBus
	notifier *Notifier
	levels   map[domain.RiskLevel]bool

	mu sync.Mutex
	// alerted holds, per owner, the positions currently alerted and at which
	// level. Each listing replaces its owner's entry.
	alerted map[string]map[string]domain.RiskLevel

	logger *slog.Logger
}

// NewRiskAlerter creates an alerter. Empty levels defaults to high only.
func NewRiskAlerter(bus domain.SignalBus, notifier *Notifier, levels []string, logger *slog.Logger) *RiskAlerter {
	set := make(map[domain.RiskLevel]bool, len(levels))
	for _, l := range levels {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			set[domain.RiskLevel(l)] = true
		}
	}
	if len(set) == 0 {
		set[domain.RiskHigh] = true
	}
	return &RiskAlerter{
		bus:      bus,
		notifier: notifier,
		levels:   set,
		alerted:  make(map[string]map[string]domain.RiskLevel),
		logger:   logger.With(slog.String("component", "risk_alerter")),
	}
}

// Run consumes position events until ctx is cancelled.
func (a *RiskAlerter) Run(ctx context.Context) error {
	msgs, err := a.bus.Subscribe(ctx, domain.ChannelPositions)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", domain.ChannelPositions, err)
	}
	a.logger.InfoContext(ctx, "risk alerter started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			a.handle(ctx, msg)
		}
	}
}

func (a *RiskAlerter) handle(ctx context.Context, payload []byte) {
	var evt positionsEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		a.logger.WarnContext(ctx, "risk alerter: undecodable event", slog.String("error", err.Error()))
		return
	}
	if evt.Event != "positions_listed" {
		return
	}

	for _, p := range a.transitions(evt.Owner, evt.Positions) {
		title, body := formatAlert(evt.Owner, p)
		if err := a.notifier.Notify(ctx, title, body); err != nil {
			a.logger.WarnContext(ctx, "risk alerter: notify failed",
				slog.String("position", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// transitions returns positions newly inside the alert levels and replaces
// owner's alerted set with the positions currently inside them. Positions
// missing from the listing are forgotten.
func (a *RiskAlerter) transitions(owner string, positions []domain.PositionMetrics) []domain.PositionMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.alerted[owner]
	next := make(map[string]domain.RiskLevel)
	var out []domain.PositionMetrics
	for _, p := range positions {
		if !a.levels[p.RiskLevel] {
			continue
		}
		next[p.ID] = p.RiskLevel
		if level, seen := prev[p.ID]; !seen || level != p.RiskLevel {
			out = append(out, p)
		}
	}
	if len(next) == 0 {
		delete(a.alerted, owner)
	} else {
		a.alerted[owner] = next
	}
	return out
}

func formatAlert(owner string, p domain.PositionMetrics) (string, string) {
	title := fmt.Sprintf("%s risk: %s %s", strings.ToUpper(string(p.RiskLevel)), p.Asset, p.Side)
	body := fmt.Sprintf(
		"position %s\nowner %s\nprice %.2f, liquidation %.2f (%.2f%% away)\nnotional %.2f, margin %.4f, pnl %.2f",
		p.ID, owner, p.CurrentPrice, p.LiquidationPrice, p.RiskDistancePct, p.Notional, p.Margin, p.PnLUSD,
	)
	return title, body
}
