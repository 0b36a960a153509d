package domain

// OpenRequest describes a hypothetical position to open.
type OpenRequest struct {
	Market   Symbol
	Side     Side
	Margin   float64
	Leverage float64
}

// CloseRequest describes an existing position to hypothetically close.
type CloseRequest struct {
	Market     Symbol
	Side       Side
	Margin     float64
	Notional   float64
	EntryPrice float64
}

// OpenSimulation is the projected outcome of opening a position.
type OpenSimulation struct {
	Market           Symbol      `json:"market"`
	Side             Side        `json:"side"`
	EntryPrice       float64     `json:"entryPrice"`
	LiquidationPrice float64     `json:"liquidationPrice"`
	MaxLoss          float64     `json:"maxLoss"`
	EstimatedFunding float64     `json:"estimatedFunding"`
	Notional         float64     `json:"notional"`
	Oracle           OraclePrice `json:"oracle"`
}

// CloseSimulation is the projected settlement of closing a position at the
// current mark price.
type CloseSimulation struct {
	Market        Symbol      `json:"market"`
	Side          Side        `json:"side"`
	MarkPrice     float64     `json:"markPrice"`
	PnL           float64     `json:"pnl"`
	FundingImpact float64     `json:"fundingImpact"`
	Settlement    float64     `json:"settlement"`
	Oracle        OraclePrice `json:"oracle"`
}
