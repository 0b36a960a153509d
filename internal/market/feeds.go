package market

import (
	"fmt"
	"sort"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// DefaultFeeds maps each supported symbol to its Pyth price account.
var DefaultFeeds = map[string]string{
	"ETH": "EdVCmQ9FSPcVe5YySXDPCRmc8aDQLKJ9xvYBMZPie1Vw",
	"SOL": "J83w4HKfqxwcq3BEMMkPFSppX3gqekLyLJBexebFVkix",
}

// FeedTable resolves symbols to oracle feed keys and back.
type FeedTable struct {
	bySymbol map[domain.Symbol]domain.PublicKey
	byKey    map[domain.PublicKey]domain.Symbol
}

// NewFeedTable parses a symbol → base58 key map.
func NewFeedTable(feeds map[string]string) (*FeedTable, error) {
	t := &FeedTable{
		bySymbol: make(map[domain.Symbol]domain.PublicKey, len(feeds)),
		byKey:    make(map[domain.PublicKey]domain.Symbol, len(feeds)),
	}
	for raw, addr := range feeds {
		sym := Normalize(raw)
		key, err := domain.ParsePublicKey(addr)
		if err != nil {
			return nil, fmt.Errorf("market: feed %s: %w", sym, err)
		}
		if other, dup := t.byKey[key]; dup {
			return nil, fmt.Errorf("market: feed %s shares key %s with %s", sym, key, other)
		}
		t.bySymbol[sym] = key
		t.byKey[key] = sym
	}
	return t, nil
}

// FeedKey returns the oracle account for symbol.
func (t *FeedTable) FeedKey(symbol domain.Symbol) (domain.PublicKey, bool) {
	k, ok := t.bySymbol[Normalize(string(symbol))]
	return k, ok
}

// SymbolFor maps an oracle key back to its symbol, or UnknownAsset.
func (t *FeedTable) SymbolFor(key domain.PublicKey) domain.Symbol {
	if s, ok := t.byKey[key]; ok {
		return s
	}
	return domain.UnknownAsset
}

// Symbols returns the symbols that have a feed, sorted.
func (t *FeedTable) Symbols() []domain.Symbol {
	out := make([]domain.Symbol, 0, len(t.bySymbol))
	for s := range t.bySymbol {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
