// Package solana implements the account store over Solana JSON-RPC.
package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mr-tron/base58"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// maxMultipleAccounts is the per-request key limit of getMultipleAccounts.
const maxMultipleAccounts = 100

// Config holds connection settings for a Solana RPC node.
type Config struct {
	URL        string
	Commitment string
	Timeout    time.Duration
}

// Client is a JSON-RPC client for a Solana node. It satisfies
// domain.AccountStore and domain.ChainStatus.
type Client struct {
	rpc        *rpc.Client
	url        string
	commitment string
	logger     *slog.Logger
}

// Dial connects to the node at cfg.URL. HTTP endpoints are stateless, so no
// round trip happens here.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("solana: rpc url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c, err := rpc.DialOptions(ctx, cfg.URL, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("solana: dial %s: %w", cfg.URL, err)
	}
	commitment := cfg.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}
	return &Client{
		rpc:        c,
		url:        cfg.URL,
		commitment: commitment,
		logger:     logger.With(slog.String("component", "solana")),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string { return c.url }

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type accountJSON struct {
	Data       []string `json:"data"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Executable bool     `json:"executable"`
}

func (a *accountJSON) decode() (domain.Account, error) {
	if len(a.Data) != 2 || a.Data[1] != "base64" {
		return domain.Account{}, fmt.Errorf("unexpected data encoding %v", a.Data)
	}
	data, err := base64.StdEncoding.DecodeString(a.Data[0])
	if err != nil {
		return domain.Account{}, fmt.Errorf("decode data: %w", err)
	}
	owner, err := domain.ParsePublicKey(a.Owner)
	if err != nil {
		return domain.Account{}, fmt.Errorf("owner: %w", err)
	}
	return domain.Account{Owner: owner, Lamports: a.Lamports, Data: data}, nil
}

func (c *Client) accountOpts() map[string]any {
	return map[string]any{"encoding": "base64", "commitment": c.commitment}
}

// GetAccount fetches a single account. It returns domain.ErrNotFound when
// the account does not exist.
func (c *Client) GetAccount(ctx context.Context, key domain.PublicKey) (domain.Account, error) {
	var resp struct {
		Context rpcContext   `json:"context"`
		Value   *accountJSON `json:"value"`
	}
	if err := c.rpc.CallContext(ctx, &resp, "getAccountInfo", key.String(), c.accountOpts()); err != nil {
		return domain.Account{}, fmt.Errorf("solana: getAccountInfo %s: %w", key, err)
	}
	if resp.Value == nil {
		return domain.Account{}, fmt.Errorf("solana: account %s: %w", key, domain.ErrNotFound)
	}
	acct, err := resp.Value.decode()
	if err != nil {
		return domain.Account{}, fmt.Errorf("solana: account %s: %w", key, err)
	}
	return acct, nil
}

// GetMultipleAccounts fetches keys in order, nil where an account is missing.
// Requests are split to respect the node's per-call limit.
func (c *Client) GetMultipleAccounts(ctx context.Context, keys []domain.PublicKey) ([]*domain.Account, error) {
	out := make([]*domain.Account, 0, len(keys))
	for start := 0; start < len(keys); start += maxMultipleAccounts {
		end := min(start+maxMultipleAccounts, len(keys))
		chunk := make([]string, 0, end-start)
		for _, k := range keys[start:end] {
			chunk = append(chunk, k.String())
		}

		var resp struct {
			Context rpcContext     `json:"context"`
			Value   []*accountJSON `json:"value"`
		}
		if err := c.rpc.CallContext(ctx, &resp, "getMultipleAccounts", chunk, c.accountOpts()); err != nil {
			return nil, fmt.Errorf("solana: getMultipleAccounts: %w", err)
		}
		if len(resp.Value) != len(chunk) {
			return nil, fmt.Errorf("solana: getMultipleAccounts: %d results for %d keys", len(resp.Value), len(chunk))
		}
		for i, v := range resp.Value {
			if v == nil {
				out = append(out, nil)
				continue
			}
			acct, err := v.decode()
			if err != nil {
				return nil, fmt.Errorf("solana: account %s: %w", chunk[i], err)
			}
			out = append(out, &acct)
		}
	}
	return out, nil
}

// GetProgramAccounts lists accounts owned by program that match all filters.
func (c *Client) GetProgramAccounts(ctx context.Context, program domain.PublicKey, filters ...domain.MemcmpFilter) ([]domain.KeyedAccount, error) {
	opts := c.accountOpts()
	if len(filters) > 0 {
		fs := make([]map[string]any, 0, len(filters))
		for _, f := range filters {
			fs = append(fs, map[string]any{"memcmp": map[string]any{
				"offset": f.Offset,
				"bytes":  base58.Encode(f.Bytes),
			}})
		}
		opts["filters"] = fs
	}

	var resp []struct {
		Pubkey  string      `json:"pubkey"`
		Account accountJSON `json:"account"`
	}
	if err := c.rpc.CallContext(ctx, &resp, "getProgramAccounts", program.String(), opts); err != nil {
		return nil, fmt.Errorf("solana: getProgramAccounts %s: %w", program, err)
	}

	out := make([]domain.KeyedAccount, 0, len(resp))
	for _, r := range resp {
		key, err := domain.ParsePublicKey(r.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("solana: getProgramAccounts: %w", err)
		}
		acct, err := r.Account.decode()
		if err != nil {
			return nil, fmt.Errorf("solana: account %s: %w", r.Pubkey, err)
		}
		out = append(out, domain.KeyedAccount{Key: key, Account: acct})
	}
	c.logger.DebugContext(ctx, "solana: program accounts fetched",
		slog.String("program", program.String()),
		slog.Int("filters", len(filters)),
		slog.Int("accounts", len(out)),
	)
	return out, nil
}

// GetBalance returns the lamport balance of key.
func (c *Client) GetBalance(ctx context.Context, key domain.PublicKey) (uint64, error) {
	var resp struct {
		Context rpcContext `json:"context"`
		Value   uint64     `json:"value"`
	}
	if err := c.rpc.CallContext(ctx, &resp, "getBalance", key.String(), map[string]any{"commitment": c.commitment}); err != nil {
		return 0, fmt.Errorf("solana: getBalance %s: %w", key, err)
	}
	return resp.Value, nil
}

// GetLatestBlockhash returns the most recent blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	var resp struct {
		Context rpcContext `json:"context"`
		Value   struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := c.rpc.CallContext(ctx, &resp, "getLatestBlockhash", map[string]any{"commitment": c.commitment}); err != nil {
		return "", fmt.Errorf("solana: getLatestBlockhash: %w", err)
	}
	if resp.Value.Blockhash == "" {
		return "", errors.New("solana: getLatestBlockhash: empty blockhash")
	}
	return resp.Value.Blockhash, nil
}

// ClusterLabel derives a display name for the cluster behind rpcURL.
func ClusterLabel(rpcURL string) string {
	lower := strings.ToLower(rpcURL)
	switch {
	case strings.Contains(lower, "devnet"):
		return "devnet"
	case strings.Contains(lower, "testnet"):
		return "testnet"
	case strings.Contains(lower, "mainnet"):
		return "mainnet-beta"
	default:
		return "custom"
	}
}
