package domain

// Symbol names a supported perpetual market, e.g. "ETH" or "SOL".
type Symbol string

// UnknownAsset is the display label used when a market's oracle cannot be
// mapped back to a known symbol.
const UnknownAsset Symbol = "UNKNOWN"

// MarketConfig is the static risk configuration of one market.
type MarketConfig struct {
	Symbol                    Symbol  `json:"symbol"`
	MaxLeverage               float64 `json:"maxLeverage"`
	MaintenanceMarginFraction float64 `json:"maintenanceMargin"`
}

// DefaultMaintenanceMarginBps applies when a decoded market account carries no
// maintenance margin field.
const DefaultMaintenanceMarginBps uint32 = 800

// RawMarket is a decoded on-chain market account snapshot.
type RawMarket struct {
	Key                  PublicKey
	Oracle               PublicKey
	MaintenanceMarginBps uint32
}
