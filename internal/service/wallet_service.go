package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// RPC health as reported by the wallet endpoint.
const (
	RPCHealthy  = "healthy"
	RPCDegraded = "degraded"
	RPCUnknown  = "unknown"
)

// WalletBalances holds a wallet's balances in whole units. Nil means not
// known.
type WalletBalances struct {
	SOL        *float64 `json:"sol"`
	Collateral *float64 `json:"collateral"`
}

// NetworkStatus describes the RPC endpoint the engine reads from.
type NetworkStatus struct {
	Cluster   string    `json:"cluster"`
	RPCURL    string    `json:"rpcUrl"`
	RPCStatus string    `json:"rpcStatus"`
	LastSync  time.Time `json:"lastSync"`
}

// WalletStatus is the connection summary shown next to the dashboard.
type WalletStatus struct {
	Connected bool           `json:"connected"`
	Address   *string        `json:"address"`
	Balances  WalletBalances `json:"balances"`
	Network   NetworkStatus  `json:"network"`
}

// WalletService reports wallet balance and RPC health.
type WalletService struct {
	chain   domain.ChainStatus
	cluster string
	rpcURL  string
	now     func() time.Time
	logger  *slog.Logger
}

// NewWalletService creates a WalletService for the given cluster label and
// endpoint.
func NewWalletService(chain domain.ChainStatus, cluster, rpcURL string, logger *slog.Logger) *WalletService {
	return &WalletService{
		chain:   chain,
		cluster: cluster,
		rpcURL:  rpcURL,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "wallet")),
	}
}

// Status returns the wallet summary. wallet may be empty; a malformed or
// unreadable wallet fails with ErrInvalidAddress.
func (s *WalletService) Status(ctx context.Context, wallet string) (WalletStatus, error) {
	var st WalletStatus

	if wallet = strings.TrimSpace(wallet); wallet != "" {
		key, err := domain.ParsePublicKey(wallet)
		if err != nil {
			return WalletStatus{}, err
		}
		lamports, err := s.chain.GetBalance(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "wallet_service: balance lookup failed",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
			return WalletStatus{}, fmt.Errorf("wallet_service: balance %s: %w", wallet, domain.ErrInvalidAddress)
		}
		addr := key.String()
		sol := float64(lamports) / domain.LamportsPerSOL
		st.Connected = true
		st.Address = &addr
		st.Balances.SOL = &sol
	}

	st.Network = NetworkStatus{Cluster: s.cluster, RPCURL: s.rpcURL, RPCStatus: RPCUnknown}
	if _, err := s.chain.GetLatestBlockhash(ctx); err != nil {
		s.logger.WarnContext(ctx, "wallet_service: rpc degraded", slog.String("error", err.Error()))
		st.Network.RPCStatus = RPCDegraded
	} else {
		st.Network.RPCStatus = RPCHealthy
	}
	st.Network.LastSync = s.now().UTC()
	return st, nil
}
