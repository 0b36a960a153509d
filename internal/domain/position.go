package domain

import (
	"strings"
	"time"
)

// Side is the direction of a perpetual position. Only two values exist.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// ParseSide maps free-form input onto a Side. "short" in any case is short;
// everything else, including the empty string, is long.
func ParseSide(s string) Side {
	if strings.EqualFold(strings.TrimSpace(s), string(SideShort)) {
		return SideShort
	}
	return SideLong
}

// IsShort reports whether s is the short side.
func (s Side) IsShort() bool { return s == SideShort }

// RiskLevel classifies how close a position is to liquidation.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "safe"
	RiskCaution RiskLevel = "caution"
	RiskHigh    RiskLevel = "high"
)

// PriceScale is the fixed-point scale of on-chain entry prices.
const PriceScale = 1_000_000

// LamportsPerSOL converts lamports to whole settlement units.
const LamportsPerSOL = 1_000_000_000

// RawPosition is a decoded on-chain position account snapshot.
type RawPosition struct {
	Key              PublicKey
	Owner            PublicKey
	Market           PublicKey
	Side             Side
	NotionalLamports uint64
	MarginLamports   uint64
	EntryPriceRaw    int64
}

// EntryPriceUSD returns the entry price descaled by PriceScale.
func (p RawPosition) EntryPriceUSD() float64 {
	return float64(p.EntryPriceRaw) / PriceScale
}

// PositionMetrics is the user-facing risk view of one position.
type PositionMetrics struct {
	ID               string    `json:"id"`
	Asset            Symbol    `json:"asset"`
	Side             Side      `json:"side"`
	Notional         float64   `json:"notional"`
	EntryPrice       float64   `json:"entryPrice"`
	CurrentPrice     float64   `json:"currentPrice"`
	PnLUSD           float64   `json:"pnlUsd"`
	PnLPct           float64   `json:"pnlPct"`
	Margin           float64   `json:"margin"`
	LiquidationPrice float64   `json:"liquidationPrice"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	RiskDistancePct  float64   `json:"riskDistancePct"`
}

// PositionList is the result of listing an owner's positions.
type PositionList struct {
	Positions []PositionMetrics `json:"positions"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
