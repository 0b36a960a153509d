package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdex/internal/domain"
	"github.com/alanyoungcy/perpdex/internal/service"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakePositions struct {
	list  domain.PositionList
	err   error
	owner string
}

func (f *fakePositions) ListPositions(_ context.Context, owner string) (domain.PositionList, error) {
	f.owner = owner
	return f.list, f.err
}

type fakeSims struct {
	open      domain.OpenRequest
	close     domain.CloseRequest
	openErr   error
	closeErr  error
	openCalls int
}

func (f *fakeSims) SimulateOpen(_ context.Context, req domain.OpenRequest) (domain.OpenSimulation, error) {
	f.open = req
	f.openCalls++
	if f.openErr != nil {
		return domain.OpenSimulation{}, f.openErr
	}
	return domain.OpenSimulation{Market: req.Market, Side: req.Side, EntryPrice: 2002, Notional: req.Margin * req.Leverage}, nil
}

func (f *fakeSims) SimulateClose(_ context.Context, req domain.CloseRequest) (domain.CloseSimulation, error) {
	f.close = req
	if f.closeErr != nil {
		return domain.CloseSimulation{}, f.closeErr
	}
	return domain.CloseSimulation{Market: req.Market, Side: req.Side, MarkPrice: 2200, Settlement: 200}, nil
}

type fakeOracle struct {
	price          domain.OraclePrice
	err            error
	market, oracle string
}

func (f *fakeOracle) Lookup(_ context.Context, market, oracle string) (domain.OraclePrice, error) {
	f.market, f.oracle = market, oracle
	return f.price, f.err
}

type fakeWallets struct {
	status service.WalletStatus
	err    error
}

func (f *fakeWallets) Status(context.Context, string) (service.WalletStatus, error) {
	return f.status, f.err
}

type fakeAudit struct {
	entries []domain.AuditEntry
	opts    domain.ListOpts
	err     error
}

func (f *fakeAudit) Log(context.Context, string, map[string]any) error { return nil }

func (f *fakeAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	f.opts = opts
	return f.entries, f.err
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestListPositions(t *testing.T) {
	fake := &fakePositions{list: domain.PositionList{
		Positions: []domain.PositionMetrics{{Asset: "ETH", Side: domain.SideLong, RiskLevel: domain.RiskSafe}},
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
	h := NewPositionHandler(fake, discard())

	rec := httptest.NewRecorder()
	h.ListPositions(rec, httptest.NewRequest(http.MethodGet, "/api/positions?wallet=abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", fake.owner)
	body := decodeBody(t, rec)
	assert.Len(t, body["positions"], 1)
	assert.Equal(t, "2026-01-02T03:04:05Z", body["updatedAt"])
}

func TestListPositionsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"invalid address", fmt.Errorf("position_service: owner: %w", domain.ErrInvalidAddress), http.StatusBadRequest, "invalid wallet address"},
		{"upstream", errors.New("rpc: connection refused"), http.StatusInternalServerError, "unable to load positions"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewPositionHandler(&fakePositions{err: tc.err}, discard())
			rec := httptest.NewRecorder()
			h.ListPositions(rec, httptest.NewRequest(http.MethodGet, "/api/positions?wallet=x", nil))
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.msg, decodeBody(t, rec)["error"])
		})
	}
}

func TestSimulateOpen(t *testing.T) {
	fake := &fakeSims{}
	h := NewSimulateHandler(fake, discard())

	body := `{"market":"eth","side":"long","margin":"100","leverage":5}`
	rec := httptest.NewRecorder()
	h.Open(rec, httptest.NewRequest(http.MethodPost, "/api/simulate/open", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OpenRequest{Market: "eth", Side: "long", Margin: 100, Leverage: 5}, fake.open)
	assert.InDelta(t, 500, decodeBody(t, rec)["notional"], 1e-9)
}

func TestSimulateOpenRejections(t *testing.T) {
	t.Run("bad json", func(t *testing.T) {
		fake := &fakeSims{}
		rec := httptest.NewRecorder()
		NewSimulateHandler(fake, discard()).Open(rec,
			httptest.NewRequest(http.MethodPost, "/api/simulate/open", strings.NewReader(`{"margin":`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, fake.openCalls)
	})

	t.Run("non numeric margin", func(t *testing.T) {
		fake := &fakeSims{}
		rec := httptest.NewRecorder()
		NewSimulateHandler(fake, discard()).Open(rec,
			httptest.NewRequest(http.MethodPost, "/api/simulate/open", strings.NewReader(`{"margin":"lots"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, fake.openCalls)
	})

	t.Run("empty body reaches validation", func(t *testing.T) {
		fake := &fakeSims{openErr: fmt.Errorf("risk: margin: %w", domain.ErrMissingField)}
		rec := httptest.NewRecorder()
		NewSimulateHandler(fake, discard()).Open(rec,
			httptest.NewRequest(http.MethodPost, "/api/simulate/open", http.NoBody))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 1, fake.openCalls)
		assert.Equal(t, "missing required field", decodeBody(t, rec)["error"])
	})

	t.Run("leverage", func(t *testing.T) {
		fake := &fakeSims{openErr: fmt.Errorf("risk: %w", domain.ErrLeverageExceedsMax)}
		rec := httptest.NewRecorder()
		NewSimulateHandler(fake, discard()).Open(rec,
			httptest.NewRequest(http.MethodPost, "/api/simulate/open", strings.NewReader(`{"margin":1,"leverage":99}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "leverage exceeds max", decodeBody(t, rec)["error"])
	})

	t.Run("overflow", func(t *testing.T) {
		fake := &fakeSims{openErr: fmt.Errorf("risk: open: result overflow: %w", domain.ErrOutOfRange)}
		rec := httptest.NewRecorder()
		NewSimulateHandler(fake, discard()).Open(rec,
			httptest.NewRequest(http.MethodPost, "/api/simulate/open", strings.NewReader(`{"margin":1e308,"leverage":5}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "input out of range", decodeBody(t, rec)["error"])
	})
}

func TestWriteJSONUnencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"price": math.NaN()})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "internal server error", decodeBody(t, rec)["error"])
}

func TestSimulateClose(t *testing.T) {
	fake := &fakeSims{}
	h := NewSimulateHandler(fake, discard())

	body := `{"market":"SOL","side":"short","margin":100,"notional":1000,"entryPrice":"2000"}`
	rec := httptest.NewRecorder()
	h.Close(rec, httptest.NewRequest(http.MethodPost, "/api/simulate/close", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.CloseRequest{Market: "SOL", Side: "short", Margin: 100, Notional: 1000, EntryPrice: 2000}, fake.close)

	fake.closeErr = fmt.Errorf("oracle: %w", domain.ErrUnsupportedMarket)
	rec = httptest.NewRecorder()
	h.Close(rec, httptest.NewRequest(http.MethodPost, "/api/simulate/close", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported market", decodeBody(t, rec)["error"])
}

func TestOracleGetPrice(t *testing.T) {
	fake := &fakeOracle{price: domain.OraclePrice{Price: 2000, Confidence: 1}}
	h := NewOracleHandler(fake, discard())

	rec := httptest.NewRecorder()
	h.GetPrice(rec, httptest.NewRequest(http.MethodGet, "/api/oracle?market=SOL&oracle=feed1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SOL", fake.market)
	assert.Equal(t, "feed1", fake.oracle)

	fake.err = fmt.Errorf("oracle: %w", domain.ErrOracleUnavailable)
	rec = httptest.NewRecorder()
	h.GetPrice(rec, httptest.NewRequest(http.MethodGet, "/api/oracle?market=SOL", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "oracle account not found", decodeBody(t, rec)["error"])
}

func TestWalletStatus(t *testing.T) {
	addr := "abc"
	sol := 1.5
	fake := &fakeWallets{status: service.WalletStatus{
		Connected: true,
		Address:   &addr,
		Balances:  service.WalletBalances{SOL: &sol},
		Network:   service.NetworkStatus{Cluster: "devnet", RPCStatus: service.RPCHealthy},
	}}
	h := NewWalletHandler(fake, discard())

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/wallet?wallet=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["connected"])

	fake.err = fmt.Errorf("wallet_service: %w", domain.ErrInvalidAddress)
	rec = httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/wallet?wallet=zzz", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditList(t *testing.T) {
	fake := &fakeAudit{entries: []domain.AuditEntry{{ID: 1, Event: "simulate_open"}}}
	h := NewAuditHandler(fake, discard())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/audit?event=simulate_open&limit=900&offset=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ListOpts{Limit: 500, Offset: 3, Event: "simulate_open"}, fake.opts)
	assert.Len(t, decodeBody(t, rec)["entries"], 1)

	fake.err = errors.New("pg down")
	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/audit", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.ListOpts{Limit: 50}, fake.opts)
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler("test", nil).HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])

	h := NewHealthHandler("test", map[string]Checker{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("postgres: ping: refused") },
	})
	rec = httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"redis": "ok", "postgres": "postgres: ping: refused"}, body["checks"])
}

func TestNumberUnmarshal(t *testing.T) {
	cases := map[string]float64{`12.5`: 12.5, `"7"`: 7, `null`: 0, `""`: 0, `" 3 "`: 3}
	for in, want := range cases {
		var n number
		require.NoError(t, json.Unmarshal([]byte(in), &n), in)
		assert.Equal(t, want, float64(n), in)
	}
	var n number
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &n))
	assert.Error(t, json.Unmarshal([]byte(`true`), &n))
}
