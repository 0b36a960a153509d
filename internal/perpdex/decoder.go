package perpdex

import (
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"

	"github.com/alanyoungcy/perpdex/internal/anchor"
	"github.com/alanyoungcy/perpdex/internal/domain"
	"github.com/alanyoungcy/perpdex/internal/metrics"
)

// Decoder turns raw program account bytes into RawPosition and RawMarket
// values according to a schema.
type Decoder struct {
	schema *anchor.Schema
	logger *slog.Logger
}

// NewDecoder creates a Decoder. A nil schema selects DefaultSchema.
func NewDecoder(schema *anchor.Schema, logger *slog.Logger) (*Decoder, error) {
	if schema == nil {
		schema = DefaultSchema()
	}
	for _, name := range []string{AccountPosition, AccountMarket} {
		if _, ok := schema.Account(name); !ok {
			return nil, fmt.Errorf("perpdex: schema %s %s has no %s account", schema.Program, schema.Version, name)
		}
	}
	pos, _ := schema.Account(AccountPosition)
	if off, ok := pos.FieldOffset("owner"); !ok || off != 8 {
		return nil, fmt.Errorf("perpdex: schema %s: position owner must be the first field", schema.Version)
	}
	return &Decoder{
		schema: schema,
		logger: logger.With(slog.String("component", "decoder")),
	}, nil
}

// Schema returns the schema the decoder was built with.
func (d *Decoder) Schema() *anchor.Schema { return d.schema }

// PositionFilters returns the memcmp filters selecting Position accounts
// owned by owner: the discriminator at offset 0 and the owner key after it.
func (d *Decoder) PositionFilters(owner domain.PublicKey) []domain.MemcmpFilter {
	acct, _ := d.schema.Account(AccountPosition)
	off, _ := acct.FieldOffset("owner")
	return []domain.MemcmpFilter{
		{Offset: 0, Bytes: append([]byte(nil), acct.Discriminator[:]...)},
		{Offset: uint64(off), Bytes: owner.Bytes()},
	}
}

// DecodePosition decodes one Position account.
func (d *Decoder) DecodePosition(key domain.PublicKey, data []byte) (domain.RawPosition, error) {
	rec, err := d.schema.Decode(AccountPosition, data)
	if err != nil {
		return domain.RawPosition{}, fmt.Errorf("perpdex: position %s: %w", key, err)
	}

	pos := domain.RawPosition{Key: key, Side: NormalizeSide(rec["side"])}
	var ok bool
	if pos.Owner, ok = rec["owner"].(domain.PublicKey); !ok {
		return domain.RawPosition{}, decodeErr(key, "owner", rec["owner"])
	}
	if pos.Market, ok = rec["market"].(domain.PublicKey); !ok {
		return domain.RawPosition{}, decodeErr(key, "market", rec["market"])
	}
	if pos.NotionalLamports, ok = toUint64(rec["notional"]); !ok {
		return domain.RawPosition{}, decodeErr(key, "notional", rec["notional"])
	}
	if pos.MarginLamports, ok = toUint64(rec["margin"]); !ok {
		return domain.RawPosition{}, decodeErr(key, "margin", rec["margin"])
	}
	entry := firstOf(rec, "entry_price", "entryPrice")
	if pos.EntryPriceRaw, ok = toInt64(entry); !ok {
		return domain.RawPosition{}, decodeErr(key, "entry_price", entry)
	}
	return pos, nil
}

// DecodeMarket decodes one Market account. A missing maintenance margin
// field falls back to DefaultMaintenanceMarginBps.
func (d *Decoder) DecodeMarket(key domain.PublicKey, data []byte) (domain.RawMarket, error) {
	rec, err := d.schema.Decode(AccountMarket, data)
	if err != nil {
		return domain.RawMarket{}, fmt.Errorf("perpdex: market %s: %w", key, err)
	}

	m := domain.RawMarket{Key: key, MaintenanceMarginBps: domain.DefaultMaintenanceMarginBps}
	var ok bool
	if m.Oracle, ok = rec["oracle"].(domain.PublicKey); !ok {
		return domain.RawMarket{}, decodeErr(key, "oracle", rec["oracle"])
	}
	if raw := firstOf(rec, "maintenance_margin_bps", "maintenanceMarginBps"); raw != nil {
		bps, ok := toUint64(raw)
		if !ok || bps > math.MaxUint32 {
			return domain.RawMarket{}, decodeErr(key, "maintenance_margin_bps", raw)
		}
		m.MaintenanceMarginBps = uint32(bps)
	}
	return m, nil
}

// DecodePositions decodes a batch of program accounts, returning only the
// ones that decode. Failures are logged and counted, never returned.
func (d *Decoder) DecodePositions(accounts []domain.KeyedAccount) []domain.RawPosition {
	out := make([]domain.RawPosition, 0, len(accounts))
	for _, a := range accounts {
		pos, err := d.DecodePosition(a.Key, a.Account.Data)
		if err != nil {
			metrics.DecodeFailures.WithLabelValues(AccountPosition).Inc()
			d.logger.Warn("decoder: skipping position",
				slog.String("account", a.Key.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, pos)
	}
	return out
}

// NormalizeSide maps the decoded side field onto a Side. Strings compare
// case-insensitively against "short"; enum variants are short when they carry
// a short tag; anything else, including absence, is long.
func NormalizeSide(v any) domain.Side {
	switch x := v.(type) {
	case string:
		return domain.ParseSide(x)
	case domain.Side:
		return domain.ParseSide(string(x))
	case anchor.Variant:
		for tag := range x {
			if strings.EqualFold(tag, string(domain.SideShort)) {
				return domain.SideShort
			}
		}
	case map[string]any:
		if _, ok := x[string(domain.SideShort)]; ok {
			return domain.SideShort
		}
	}
	return domain.SideLong
}

func firstOf(rec anchor.Record, names ...string) any {
	for _, n := range names {
		if v, ok := rec[n]; ok && v != nil {
			return v
		}
	}
	return nil
}

func decodeErr(key domain.PublicKey, field string, v any) error {
	return fmt.Errorf("perpdex: %s: %w: field %s has unexpected value %v (%T)", key, domain.ErrDecodeFailure, field, v, v)
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case *big.Int:
		if x.Sign() < 0 || !x.IsUint64() {
			return 0, false
		}
		return x.Uint64(), true
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case *big.Int:
		if !x.IsInt64() {
			return 0, false
		}
		return x.Int64(), true
	default:
		return 0, false
	}
}
