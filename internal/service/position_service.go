package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/perpdex/internal/domain"
	"github.com/alanyoungcy/perpdex/internal/market"
	"github.com/alanyoungcy/perpdex/internal/metrics"
	"github.com/alanyoungcy/perpdex/internal/perpdex"
	"github.com/alanyoungcy/perpdex/internal/risk"
)

// DefaultOracleConcurrency bounds parallel oracle reads per listing.
const DefaultOracleConcurrency = 8

// PositionConfig configures a PositionService.
type PositionConfig struct {
	Program           domain.PublicKey
	OracleConcurrency int
}

// PositionService lists an owner's on-chain positions with live risk metrics.
type PositionService struct {
	accounts    domain.AccountStore
	decoder     *perpdex.Decoder
	oracles     OracleSource
	feeds       *market.FeedTable
	bus         domain.SignalBus
	audit       domain.AuditStore
	program     domain.PublicKey
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// NewPositionService creates a PositionService. bus and audit may be nil.
func NewPositionService(
	cfg PositionConfig,
	accounts domain.AccountStore,
	decoder *perpdex.Decoder,
	oracles OracleSource,
	feeds *market.FeedTable,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *PositionService {
	concurrency := cfg.OracleConcurrency
	if concurrency <= 0 {
		concurrency = DefaultOracleConcurrency
	}
	return &PositionService{
		accounts:    accounts,
		decoder:     decoder,
		oracles:     oracles,
		feeds:       feeds,
		bus:         bus,
		audit:       audit,
		program:     cfg.Program,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "positions")),
	}
}

// ListPositions returns risk metrics for every position owned by owner. An
// empty owner yields an empty list. Accounts that fail to decode are dropped
// and markets whose oracle cannot be read are valued at entry price.
func (s *PositionService) ListPositions(ctx context.Context, owner string) (domain.PositionList, error) {
	result := domain.PositionList{Positions: []domain.PositionMetrics{}, UpdatedAt: s.now().UTC()}

	owner = strings.TrimSpace(owner)
	if owner == "" {
		return result, nil
	}
	ownerKey, err := domain.ParsePublicKey(owner)
	if err != nil {
		return domain.PositionList{}, fmt.Errorf("position_service: %w", err)
	}

	accounts, err := s.accounts.GetProgramAccounts(ctx, s.program, s.decoder.PositionFilters(ownerKey)...)
	if err != nil {
		return domain.PositionList{}, fmt.Errorf("position_service: list accounts: %w", err)
	}
	positions := s.decoder.DecodePositions(accounts)
	if len(positions) > 0 {
		markets, err := s.loadMarkets(ctx, positions)
		if err != nil {
			return domain.PositionList{}, err
		}
		prices := s.fetchPrices(ctx, markets)

		for _, pos := range positions {
			mkt := markets[pos.Market]
			asset := domain.UnknownAsset
			var price *domain.OraclePrice
			if mkt != nil {
				asset = s.feeds.SymbolFor(mkt.Oracle)
				price = prices[mkt.Oracle]
			}
			result.Positions = append(result.Positions, risk.ComputeMetrics(pos, mkt, price, asset))
		}
	}

	metrics.PositionsListed.Observe(float64(len(result.Positions)))
	s.logger.InfoContext(ctx, "position_service: positions listed",
		slog.String("owner", owner),
		slog.Int("accounts", len(accounts)),
		slog.Int("positions", len(result.Positions)),
	)
	s.publish(ctx, ownerKey, result)
	s.record(ctx, ownerKey, len(accounts), len(result.Positions))
	return result, nil
}

// loadMarkets fetches and decodes each distinct market referenced by
// positions. Missing or undecodable markets are absent from the map.
func (s *PositionService) loadMarkets(ctx context.Context, positions []domain.RawPosition) (map[domain.PublicKey]*domain.RawMarket, error) {
	keys := make([]domain.PublicKey, 0, len(positions))
	seen := make(map[domain.PublicKey]struct{}, len(positions))
	for _, p := range positions {
		if _, ok := seen[p.Market]; ok {
			continue
		}
		seen[p.Market] = struct{}{}
		keys = append(keys, p.Market)
	}

	accts, err := s.accounts.GetMultipleAccounts(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("position_service: load markets: %w", err)
	}

	out := make(map[domain.PublicKey]*domain.RawMarket, len(keys))
	for i, acct := range accts {
		if i >= len(keys) || acct == nil {
			continue
		}
		m, err := s.decoder.DecodeMarket(keys[i], acct.Data)
		if err != nil {
			metrics.DecodeFailures.WithLabelValues(perpdex.AccountMarket).Inc()
			s.logger.WarnContext(ctx, "position_service: skipping market",
				slog.String("market", keys[i].String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		out[keys[i]] = &m
	}
	return out, nil
}

// fetchPrices reads each distinct oracle once, concurrently. Failed reads
// are logged and left out of the result.
func (s *PositionService) fetchPrices(ctx context.Context, markets map[domain.PublicKey]*domain.RawMarket) map[domain.PublicKey]*domain.OraclePrice {
	keys := make([]domain.PublicKey, 0, len(markets))
	seen := make(map[domain.PublicKey]struct{}, len(markets))
	for _, m := range markets {
		if m.Oracle.IsZero() {
			continue
		}
		if _, ok := seen[m.Oracle]; ok {
			continue
		}
		seen[m.Oracle] = struct{}{}
		keys = append(keys, m.Oracle)
	}

	results := make([]*domain.OraclePrice, len(keys))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			price, err := s.oracles.FetchByKey(ctx, key, s.feeds.SymbolFor(key))
			if err != nil {
				metrics.StalePrices.Inc()
				s.logger.WarnContext(ctx, "position_service: oracle unavailable, using entry price",
					slog.String("oracle", key.String()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = &price
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[domain.PublicKey]*domain.OraclePrice, len(keys))
	for i, key := range keys {
		if results[i] != nil {
			out[key] = results[i]
		}
	}
	return out
}

func (s *PositionService) publish(ctx context.Context, owner domain.PublicKey, list domain.PositionList) {
	if s.bus == nil {
		return
	}
	evt, err := json.Marshal(map[string]any{
		"event":      "positions_listed",
		"owner":      owner.String(),
		"positions":  list.Positions,
		"updated_at": list.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "position_service: encode event failed",
			slog.String("owner", owner.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelPositions, evt); err != nil {
		s.logger.WarnContext(ctx, "position_service: publish event failed",
			slog.String("owner", owner.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PositionService) record(ctx context.Context, owner domain.PublicKey, accounts, positions int) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, "list_positions", map[string]any{
		"owner":     owner.String(),
		"accounts":  accounts,
		"positions": positions,
	}); err != nil {
		s.logger.WarnContext(ctx, "position_service: audit log failed",
			slog.String("error", err.Error()),
		)
	}
}
