package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/perpdex/internal/domain"
	"github.com/alanyoungcy/perpdex/internal/market"
	"github.com/alanyoungcy/perpdex/internal/metrics"
)

// AccountReader is the single-account read the adapter needs.
type AccountReader interface {
	GetAccount(ctx context.Context, key domain.PublicKey) (domain.Account, error)
}

// Adapter fetches and decodes oracle price accounts. Each call performs one
// read; nothing is cached and nothing is retried here.
type Adapter struct {
	accounts AccountReader
	feeds    *market.FeedTable
	logger   *slog.Logger
}

// NewAdapter creates an Adapter over the given account reader and feed table.
func NewAdapter(accounts AccountReader, feeds *market.FeedTable, logger *slog.Logger) *Adapter {
	return &Adapter{
		accounts: accounts,
		feeds:    feeds,
		logger:   logger.With(slog.String("component", "oracle")),
	}
}

// FetchBySymbol resolves symbol through the feed table and fetches its price.
func (a *Adapter) FetchBySymbol(ctx context.Context, symbol domain.Symbol) (domain.OraclePrice, error) {
	symbol = market.Normalize(string(symbol))
	key, ok := a.feeds.FeedKey(symbol)
	if !ok {
		return domain.OraclePrice{}, fmt.Errorf("oracle: %s: %w", symbol, domain.ErrUnsupportedMarket)
	}
	return a.FetchByKey(ctx, key, symbol)
}

// FetchByKey fetches the price account at key. label is echoed as the
// result's market; an empty label becomes UnknownAsset.
func (a *Adapter) FetchByKey(ctx context.Context, key domain.PublicKey, label domain.Symbol) (domain.OraclePrice, error) {
	if label == "" {
		label = domain.UnknownAsset
	}

	acct, err := a.accounts.GetAccount(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.OracleFetches.WithLabelValues("missing").Inc()
			return domain.OraclePrice{}, fmt.Errorf("oracle: %s: %w", key, domain.ErrOracleUnavailable)
		}
		metrics.OracleFetches.WithLabelValues("error").Inc()
		return domain.OraclePrice{}, fmt.Errorf("oracle: fetch %s: %w: %w", key, domain.ErrOracleUnavailable, err)
	}

	data, err := ParsePriceData(acct.Data)
	if err != nil {
		metrics.OracleFetches.WithLabelValues("error").Inc()
		return domain.OraclePrice{}, fmt.Errorf("oracle: decode %s: %w: %w", key, domain.ErrOracleUnavailable, errors.Join(domain.ErrDecodeFailure, err))
	}

	metrics.OracleFetches.WithLabelValues("ok").Inc()
	price := data.Normalize(label)
	a.logger.DebugContext(ctx, "oracle: price fetched",
		slog.String("feed", key.String()),
		slog.String("market", string(label)),
		slog.Float64("price", price.Price),
		slog.Float64("confidence", price.Confidence),
		slog.String("status", price.Status.String()),
	)
	return price, nil
}
