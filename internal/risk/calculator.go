// Package risk turns decoded positions and oracle prices into risk metrics,
// and projects hypothetical opens and closes. Everything here is pure.
package risk

import (
	"math"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// Risk distance thresholds in percent. Both bounds are inclusive on the
// riskier side.
const (
	HighRiskMaxDistancePct    = 5.0
	CautionRiskMaxDistancePct = 12.0
)

// ClassifyRisk buckets a liquidation distance.
func ClassifyRisk(distancePct float64) domain.RiskLevel {
	switch {
	case distancePct <= HighRiskMaxDistancePct:
		return domain.RiskHigh
	case distancePct <= CautionRiskMaxDistancePct:
		return domain.RiskCaution
	default:
		return domain.RiskSafe
	}
}

// ComputeMetrics values pos against its market and oracle price. market and
// price may be nil: a missing price values the position at its entry price,
// a missing market uses DefaultMaintenanceMarginBps. The result is always
// complete.
//
// Notional and margin stay in lamports while prices are in USD, so baseSize
// and the liquidation offset mix units. The arithmetic matches the
// dashboard's historical numbers and is kept as is; the simulator uses
// USD throughout.
func ComputeMetrics(pos domain.RawPosition, market *domain.RawMarket, price *domain.OraclePrice, asset domain.Symbol) domain.PositionMetrics {
	notional := float64(pos.NotionalLamports)
	margin := float64(pos.MarginLamports)
	short := pos.Side.IsShort()

	entry := pos.EntryPriceUSD()
	current := entry
	if price != nil {
		current = price.Price
	}

	var baseSize float64
	if entry != 0 {
		baseSize = notional / entry
	}

	delta := current - entry
	if short {
		delta = entry - current
	}

	var pnlLamports float64
	if baseSize != 0 {
		pnlLamports = delta * baseSize
	}
	pnlUSD := pnlLamports / domain.LamportsPerSOL * current
	marginUSD := margin / domain.LamportsPerSOL * current

	var pnlPct float64
	if marginUSD != 0 {
		pnlPct = pnlUSD / marginUSD * 100
	}

	bps := domain.DefaultMaintenanceMarginBps
	if market != nil {
		bps = market.MaintenanceMarginBps
	}
	maintenance := notional * (float64(bps) / 10_000)

	liq := entry
	if baseSize != 0 {
		offset := (maintenance - margin) / baseSize
		if short {
			liq = entry - offset
		} else {
			liq = entry + offset
		}
	}

	var distance float64
	if current != 0 {
		if short {
			distance = (liq - current) / current
		} else {
			distance = (current - liq) / current
		}
	}
	distancePct := math.Max(0, distance*100)

	var notionalUSD float64
	if pos.NotionalLamports != 0 {
		notionalUSD = notional / domain.LamportsPerSOL * entry
	}

	if asset == "" {
		asset = domain.UnknownAsset
	}

	return domain.PositionMetrics{
		ID:               pos.Key.String(),
		Asset:            asset,
		Side:             pos.Side,
		Notional:         notionalUSD,
		EntryPrice:       entry,
		CurrentPrice:     current,
		PnLUSD:           pnlUSD,
		PnLPct:           pnlPct,
		Margin:           marginUSD,
		LiquidationPrice: liq,
		RiskLevel:        ClassifyRisk(distancePct),
		RiskDistancePct:  distancePct,
	}
}
