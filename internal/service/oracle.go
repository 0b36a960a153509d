package service

import (
	"context"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// OracleSource fetches normalized oracle prices.
type OracleSource interface {
	FetchBySymbol(ctx context.Context, symbol domain.Symbol) (domain.OraclePrice, error)
	FetchByKey(ctx context.Context, key domain.PublicKey, label domain.Symbol) (domain.OraclePrice, error)
}

// OracleService serves single oracle lookups.
type OracleService struct {
	oracles OracleSource
}

// NewOracleService creates an OracleService.
func NewOracleService(oracles OracleSource) *OracleService {
	return &OracleService{oracles: oracles}
}

// Lookup fetches the price for market, or for the feed account oracleKey when
// one is given, in which case market is only the display label.
func (s *OracleService) Lookup(ctx context.Context, market, oracleKey string) (domain.OraclePrice, error) {
	symbol := normalizeMarket(market)
	if oracleKey == "" {
		return s.oracles.FetchBySymbol(ctx, symbol)
	}
	key, err := domain.ParsePublicKey(oracleKey)
	if err != nil {
		return domain.OraclePrice{}, err
	}
	return s.oracles.FetchByKey(ctx, key, symbol)
}
