package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdex/internal/domain"
	"github.com/alanyoungcy/perpdex/internal/market"
)

func newSimulationFixture(t *testing.T) (*SimulationService, *fakeOracles, *fakeBus, *fakeAudit) {
	t.Helper()
	registry, err := market.NewRegistry(market.DefaultConfigs)
	require.NoError(t, err)
	oracles := &fakeOracles{symbols: map[domain.Symbol]float64{"ETH": 2000, "SOL": 150}}
	bus, audit := &fakeBus{}, &fakeAudit{}
	return NewSimulationService(registry, oracles, bus, audit, discardLogger()), oracles, bus, audit
}

func TestSimulateOpenRejectsLeverageAboveCap(t *testing.T) {
	svc, oracles, _, _ := newSimulationFixture(t)
	_, err := svc.SimulateOpen(context.Background(), domain.OpenRequest{Market: "ETH", Side: "long", Margin: 100, Leverage: 15})
	assert.ErrorIs(t, err, domain.ErrLeverageExceedsMax)
	assert.Equal(t, 0, oracles.total, "rejected before the oracle read")
}

func TestSimulateOpenUnsupportedMarket(t *testing.T) {
	svc, _, _, _ := newSimulationFixture(t)
	for _, req := range []domain.OpenRequest{
		{Market: "XRP", Margin: 100, Leverage: 2},
		{Market: "XRP"},
		{Market: "xrp", Margin: -1, Leverage: 99},
	} {
		_, err := svc.SimulateOpen(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrUnsupportedMarket)
	}
}

func TestSimulateOpenDefaults(t *testing.T) {
	svc, _, bus, audit := newSimulationFixture(t)
	sim, err := svc.SimulateOpen(context.Background(), domain.OpenRequest{Side: "SHORT", Margin: 100, Leverage: 5})
	require.NoError(t, err)
	assert.Equal(t, domain.Symbol("ETH"), sim.Market)
	assert.Equal(t, domain.SideShort, sim.Side)
	assert.Equal(t, 1999.0, sim.EntryPrice)
	assert.Equal(t, 500.0, sim.Notional)

	assert.Len(t, bus.published[domain.ChannelSimulations], 1)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "simulate_open", audit.entries[0].Event)
}

func TestSimulateOpenLowercaseMarket(t *testing.T) {
	svc, _, _, _ := newSimulationFixture(t)
	sim, err := svc.SimulateOpen(context.Background(), domain.OpenRequest{Market: " sol ", Side: "long", Margin: 10, Leverage: 8})
	require.NoError(t, err)
	assert.Equal(t, domain.Symbol("SOL"), sim.Market)
	assert.Equal(t, 151.0, sim.EntryPrice)
}

func TestSimulateCloseRequiresFields(t *testing.T) {
	svc, oracles, _, audit := newSimulationFixture(t)
	_, err := svc.SimulateClose(context.Background(), domain.CloseRequest{Market: "ETH", Side: "long", Margin: 0, Notional: 1000, EntryPrice: 1900})
	assert.ErrorIs(t, err, domain.ErrMissingField)
	assert.Equal(t, 0, oracles.total)
	assert.Empty(t, audit.entries)
}

func TestSimulateClose(t *testing.T) {
	svc, _, _, audit := newSimulationFixture(t)
	sim, err := svc.SimulateClose(context.Background(), domain.CloseRequest{Market: "eth", Side: "long", Margin: 100, Notional: 1000, EntryPrice: 1600})
	require.NoError(t, err)
	assert.Equal(t, domain.Symbol("ETH"), sim.Market)
	assert.Equal(t, 2000.0, sim.MarkPrice)
	assert.InDelta(t, 250.0, sim.PnL, 1e-9)
	assert.InDelta(t, 350.0, sim.Settlement, 1e-9)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "simulate_close", audit.entries[0].Event)
}

func TestSimulateCloseUnsupportedMarket(t *testing.T) {
	svc, _, _, _ := newSimulationFixture(t)
	_, err := svc.SimulateClose(context.Background(), domain.CloseRequest{Market: "BTC", Margin: 1, Notional: 1, EntryPrice: 1})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMarket)
}

func TestSimulateOverflowIsRejected(t *testing.T) {
	svc, _, bus, audit := newSimulationFixture(t)

	_, err := svc.SimulateOpen(context.Background(), domain.OpenRequest{Market: "ETH", Side: "long", Margin: 1e308, Leverage: 5})
	require.ErrorIs(t, err, domain.ErrOutOfRange)

	_, err = svc.SimulateClose(context.Background(), domain.CloseRequest{Market: "ETH", Side: "long", Margin: 10, Notional: 1e308, EntryPrice: 1e-300})
	require.ErrorIs(t, err, domain.ErrOutOfRange)

	assert.Empty(t, bus.published[domain.ChannelSimulations], "nothing published")
	assert.Empty(t, audit.entries, "nothing audited")
}
