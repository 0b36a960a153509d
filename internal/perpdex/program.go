// Package perpdex knows the on-chain layout of the perpetuals program: its
// address, its Position and Market account schemas, and how to turn decoded
// records into domain values.
package perpdex

import (
	"github.com/alanyoungcy/perpdex/internal/anchor"
	"github.com/alanyoungcy/perpdex/internal/domain"
)

// DefaultProgramID is the deployed program address on devnet.
const DefaultProgramID = "HGqW2bHqovHnVqMDsz59TdcXGZi5eEbVWVDuvScDUrEQ"

// Account type names as they appear in the program IDL.
const (
	AccountPosition = "Position"
	AccountMarket   = "Market"
)

// DefaultSchema is the built-in layout used when no IDL file is configured.
// Field order matters: owner must stay first so owner filters hit offset 8.
func DefaultSchema() *anchor.Schema {
	pubkey := anchor.Type{Kind: anchor.KindPublicKey}
	return anchor.NewSchema("perpdex", "0.1.0",
		anchor.Account{
			Name: AccountPosition,
			Fields: []anchor.Field{
				{Name: "owner", Type: pubkey},
				{Name: "market", Type: pubkey},
				{Name: "side", Type: anchor.Type{Kind: anchor.KindEnum, Variants: []string{"Long", "Short"}}},
				{Name: "notional", Type: anchor.Type{Kind: anchor.KindU64}},
				{Name: "margin", Type: anchor.Type{Kind: anchor.KindU64}},
				{Name: "entry_price", Type: anchor.Type{Kind: anchor.KindI64}},
				{Name: "bump", Type: anchor.Type{Kind: anchor.KindU8}},
			},
		},
		anchor.Account{
			Name: AccountMarket,
			Fields: []anchor.Field{
				{Name: "authority", Type: pubkey},
				{Name: "oracle", Type: pubkey},
				{Name: "collateral_mint", Type: pubkey},
				{Name: "maintenance_margin_bps", Type: anchor.Type{Kind: anchor.KindU32}},
				{Name: "bump", Type: anchor.Type{Kind: anchor.KindU8}},
			},
		},
	)
}

// ParseProgramID parses a configured program address.
func ParseProgramID(s string) (domain.PublicKey, error) {
	if s == "" {
		s = DefaultProgramID
	}
	return domain.ParsePublicKey(s)
}
