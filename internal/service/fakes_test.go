package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKey(b byte) domain.PublicKey {
	var pk domain.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

type fakeAccounts struct {
	program   []domain.KeyedAccount
	accounts  map[domain.PublicKey][]byte
	err       error
	multiErr  error
	filters   []domain.MemcmpFilter
	multiKeys []domain.PublicKey
}

func (f *fakeAccounts) GetAccount(_ context.Context, key domain.PublicKey) (domain.Account, error) {
	data, ok := f.accounts[key]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return domain.Account{Data: data}, nil
}

func (f *fakeAccounts) GetMultipleAccounts(_ context.Context, keys []domain.PublicKey) ([]*domain.Account, error) {
	if f.multiErr != nil {
		return nil, f.multiErr
	}
	f.multiKeys = append(f.multiKeys, keys...)
	out := make([]*domain.Account, len(keys))
	for i, k := range keys {
		if data, ok := f.accounts[k]; ok {
			out[i] = &domain.Account{Data: data}
		}
	}
	return out, nil
}

func (f *fakeAccounts) GetProgramAccounts(_ context.Context, _ domain.PublicKey, filters ...domain.MemcmpFilter) ([]domain.KeyedAccount, error) {
	f.filters = filters
	if f.err != nil {
		return nil, f.err
	}
	return f.program, nil
}

type fakeOracles struct {
	mu      sync.Mutex
	prices  map[domain.PublicKey]float64
	symbols map[domain.Symbol]float64
	calls   map[domain.PublicKey]int
	total   int
}

func (f *fakeOracles) FetchBySymbol(_ context.Context, symbol domain.Symbol) (domain.OraclePrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total++
	p, ok := f.symbols[symbol]
	if !ok {
		return domain.OraclePrice{}, domain.ErrUnsupportedMarket
	}
	return domain.OraclePrice{Market: symbol, Price: p, Confidence: 1}, nil
}

func (f *fakeOracles) FetchByKey(_ context.Context, key domain.PublicKey, label domain.Symbol) (domain.OraclePrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total++
	if f.calls == nil {
		f.calls = make(map[domain.PublicKey]int)
	}
	f.calls[key]++
	p, ok := f.prices[key]
	if !ok {
		return domain.OraclePrice{}, domain.ErrOracleUnavailable
	}
	return domain.OraclePrice{Market: label, Price: p}, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	err       error
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *fakeAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, domain.AuditEntry{Event: event, Detail: detail, CreatedAt: time.Now()})
	return nil
}

func (a *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return a.entries, nil
}

type fakeChain struct {
	balance    uint64
	balanceErr error
	hashErr    error
}

func (c *fakeChain) GetBalance(context.Context, domain.PublicKey) (uint64, error) {
	return c.balance, c.balanceErr
}

func (c *fakeChain) GetLatestBlockhash(context.Context) (string, error) {
	if c.hashErr != nil {
		return "", c.hashErr
	}
	return "hash", nil
}
