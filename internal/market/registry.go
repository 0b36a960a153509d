// Package market holds the static per-market tables: the risk registry
// (leverage cap, maintenance margin) and the oracle feed table. Both are built
// once at start-up and shared read-only.
package market

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// DefaultConfigs is the production risk table.
var DefaultConfigs = []domain.MarketConfig{
	{Symbol: "ETH", MaxLeverage: 10, MaintenanceMarginFraction: 0.06},
	{Symbol: "SOL", MaxLeverage: 8, MaintenanceMarginFraction: 0.08},
}

// Registry is an immutable lookup of market risk configuration by symbol.
type Registry struct {
	configs map[domain.Symbol]domain.MarketConfig
}

// NewRegistry validates configs and builds a Registry. Symbols are
// upper-cased; duplicates are rejected.
func NewRegistry(configs []domain.MarketConfig) (*Registry, error) {
	r := &Registry{configs: make(map[domain.Symbol]domain.MarketConfig, len(configs))}
	for _, c := range configs {
		sym := Normalize(string(c.Symbol))
		if sym == "" {
			return nil, fmt.Errorf("market: registry: empty symbol")
		}
		if c.MaxLeverage < 1 {
			return nil, fmt.Errorf("market: registry: %s: max leverage %.4g must be >= 1", sym, c.MaxLeverage)
		}
		if c.MaintenanceMarginFraction <= 0 || c.MaintenanceMarginFraction >= 1 {
			return nil, fmt.Errorf("market: registry: %s: maintenance margin %.4g must be in (0, 1)", sym, c.MaintenanceMarginFraction)
		}
		if _, dup := r.configs[sym]; dup {
			return nil, fmt.Errorf("market: registry: duplicate symbol %s", sym)
		}
		c.Symbol = sym
		r.configs[sym] = c
	}
	return r, nil
}

// Lookup returns the configuration for symbol. Unknown symbols report false;
// callers must reject the request rather than fall back to a default.
func (r *Registry) Lookup(symbol domain.Symbol) (domain.MarketConfig, bool) {
	c, ok := r.configs[Normalize(string(symbol))]
	return c, ok
}

// Symbols returns the registered symbols in sorted order.
func (r *Registry) Symbols() []domain.Symbol {
	out := make([]domain.Symbol, 0, len(r.configs))
	for s := range r.configs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Normalize upper-cases and trims a user supplied symbol.
func Normalize(s string) domain.Symbol {
	return domain.Symbol(strings.ToUpper(strings.TrimSpace(s)))
}
