package risk

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// ValidateOpen checks the user inputs of an open simulation against cfg.
func ValidateOpen(cfg domain.MarketConfig, req domain.OpenRequest) error {
	if !positive(req.Margin) {
		return fmt.Errorf("risk: margin: %w", domain.ErrMissingField)
	}
	if !positive(req.Leverage) {
		return fmt.Errorf("risk: leverage: %w", domain.ErrMissingField)
	}
	if req.Leverage > cfg.MaxLeverage {
		return fmt.Errorf("risk: %w (%gx > %gx for %s)", domain.ErrLeverageExceedsMax, req.Leverage, cfg.MaxLeverage, cfg.Symbol)
	}
	return nil
}

// SimulateOpen projects opening req at the oracle price. The fill price is
// skewed by the confidence band against the trader: longs fill at
// price+confidence, shorts at price-confidence.
func SimulateOpen(cfg domain.MarketConfig, price domain.OraclePrice, req domain.OpenRequest) (domain.OpenSimulation, error) {
	if err := ValidateOpen(cfg, req); err != nil {
		return domain.OpenSimulation{}, err
	}

	short := req.Side.IsShort()
	fill := price.Price + price.Confidence
	if short {
		fill = price.Price - price.Confidence
	}

	notional := req.Margin * req.Leverage
	var liq float64
	if fill != 0 {
		baseSize := notional / fill
		offset := (notional*cfg.MaintenanceMarginFraction - req.Margin) / baseSize
		if short {
			liq = fill - offset
		} else {
			liq = fill + offset
		}
	}

	if err := finite("open", notional, fill, liq); err != nil {
		return domain.OpenSimulation{}, err
	}

	return domain.OpenSimulation{
		Market:           cfg.Symbol,
		Side:             req.Side,
		EntryPrice:       fill,
		LiquidationPrice: liq,
		MaxLoss:          req.Margin,
		EstimatedFunding: 0,
		Notional:         notional,
		Oracle:           price,
	}, nil
}

// ValidateClose checks that every numeric input of a close simulation is set.
func ValidateClose(req domain.CloseRequest) error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"margin", req.Margin},
		{"notional", req.Notional},
		{"entryPrice", req.EntryPrice},
	} {
		if !positive(f.v) {
			return fmt.Errorf("risk: %s: %w", f.name, domain.ErrMissingField)
		}
	}
	return nil
}

// SimulateClose projects closing req at the oracle mark price. No confidence
// skew is applied here, unlike SimulateOpen. Funding is not modelled.
func SimulateClose(price domain.OraclePrice, req domain.CloseRequest) (domain.CloseSimulation, error) {
	if err := ValidateClose(req); err != nil {
		return domain.CloseSimulation{}, err
	}

	mark := price.Price
	baseSize := req.Notional / req.EntryPrice
	pnl := (mark - req.EntryPrice) * baseSize
	if req.Side.IsShort() {
		pnl = (req.EntryPrice - mark) * baseSize
	}
	const fundingImpact = 0.0
	settlement := req.Margin + pnl - fundingImpact
	if err := finite("close", baseSize, pnl, settlement); err != nil {
		return domain.CloseSimulation{}, err
	}

	return domain.CloseSimulation{
		Market:        req.Market,
		Side:          req.Side,
		MarkPrice:     mark,
		PnL:           pnl,
		FundingImpact: fundingImpact,
		Settlement:    settlement,
		Oracle:        price,
	}, nil
}

// finite rejects results that overflowed float64. Inputs that pass validation
// can still be large enough to do that.
func finite(kind string, vs ...float64) error {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("risk: %s: result overflow: %w", kind, domain.ErrOutOfRange)
		}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
