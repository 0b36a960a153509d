package perpdex

import (
	"github.com/alanyoungcy/perpdex/internal/anchor"
	"github.com/alanyoungcy/perpdex/internal/domain"
)

// EncodePosition serialises pos under the decoder's schema, the inverse of
// DecodePosition.
func (d *Decoder) EncodePosition(pos domain.RawPosition) ([]byte, error) {
	return d.schema.Encode(AccountPosition, anchor.Record{
		"owner":       pos.Owner,
		"market":      pos.Market,
		"side":        string(pos.Side),
		"notional":    pos.NotionalLamports,
		"margin":      pos.MarginLamports,
		"entry_price": pos.EntryPriceRaw,
	})
}

// EncodeMarket serialises m under the decoder's schema.
func (d *Decoder) EncodeMarket(m domain.RawMarket) ([]byte, error) {
	return d.schema.Encode(AccountMarket, anchor.Record{
		"oracle":                 m.Oracle,
		"maintenance_margin_bps": uint64(m.MaintenanceMarginBps),
	})
}
