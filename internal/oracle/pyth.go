// Package oracle reads Pyth price accounts and normalizes them into
// domain.OraclePrice values.
package oracle

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// Pyth v2 price account header.
const (
	pythMagic       uint32 = 0xa1b2c3d4
	pythVersion2    uint32 = 2
	pythAccountType uint32 = 3 // price account

	offMagic     = 0
	offVersion   = 4
	offType      = 8
	offExponent  = 20
	offTimestamp = 96
	offAggPrice  = 208
	offAggConf   = 216
	offAggStatus = 224

	// PriceAccountHeaderSize is the minimum length of a decodable account.
	PriceAccountHeaderSize = 240
)

// PriceData is the subset of a Pyth price account the engine uses.
type PriceData struct {
	Exponent    int32
	Price       int64
	Confidence  uint64
	Status      domain.PriceStatus
	PublishTime int64
}

// ParsePriceData decodes the aggregate price out of a Pyth v2 price account.
func ParsePriceData(data []byte) (PriceData, error) {
	if len(data) < PriceAccountHeaderSize {
		return PriceData{}, fmt.Errorf("oracle: price account too short: %d bytes", len(data))
	}
	le := binary.LittleEndian
	if m := le.Uint32(data[offMagic:]); m != pythMagic {
		return PriceData{}, fmt.Errorf("oracle: bad magic %#x", m)
	}
	if v := le.Uint32(data[offVersion:]); v != pythVersion2 {
		return PriceData{}, fmt.Errorf("oracle: unsupported version %d", v)
	}
	if at := le.Uint32(data[offType:]); at != pythAccountType {
		return PriceData{}, fmt.Errorf("oracle: account type %d is not a price account", at)
	}
	return PriceData{
		Exponent:    int32(le.Uint32(data[offExponent:])),
		Price:       int64(le.Uint64(data[offAggPrice:])),
		Confidence:  le.Uint64(data[offAggConf:]),
		Status:      domain.PriceStatus(le.Uint32(data[offAggStatus:])),
		PublishTime: int64(le.Uint64(data[offTimestamp:])),
	}, nil
}

// Normalize scales raw integers by 10^exponent.
func (d PriceData) Normalize(market domain.Symbol) domain.OraclePrice {
	scale := math.Pow10(int(d.Exponent))
	return domain.OraclePrice{
		Market:      market,
		Price:       float64(d.Price) * scale,
		Confidence:  float64(d.Confidence) * scale,
		PublishTime: d.PublishTime,
		Status:      d.Status,
		Exponent:    d.Exponent,
		Raw: domain.RawPrice{
			Price:      d.Price,
			Confidence: d.Confidence,
		},
	}
}
