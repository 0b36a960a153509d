package domain

// PriceStatus is the aggregate status reported by a price feed account.
type PriceStatus uint32

const (
	PriceStatusUnknown PriceStatus = iota
	PriceStatusTrading
	PriceStatusHalted
	PriceStatusAuction
	PriceStatusIgnored
)

// String returns the lower-case status name.
func (s PriceStatus) String() string {
	switch s {
	case PriceStatusTrading:
		return "trading"
	case PriceStatusHalted:
		return "halted"
	case PriceStatusAuction:
		return "auction"
	case PriceStatusIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// RawPrice holds the unscaled integer values read from the feed account.
type RawPrice struct {
	Price      int64  `json:"price"`
	Confidence uint64 `json:"confidence"`
}

// OraclePrice is a normalized price snapshot. Price and Confidence are already
// scaled to USD: Price = Raw.Price * 10^Exponent.
type OraclePrice struct {
	Market      Symbol      `json:"market"`
	Price       float64     `json:"price"`
	Confidence  float64     `json:"confidence"`
	PublishTime int64       `json:"publishTime"`
	Status      PriceStatus `json:"status"`
	Exponent    int32       `json:"exponent"`
	Raw         RawPrice    `json:"raw"`
}
