package oracle

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdex/internal/domain"
	"github.com/alanyoungcy/perpdex/internal/market"
)

type fakeReader struct {
	accounts map[domain.PublicKey][]byte
	err      error
	calls    int
}

func (f *fakeReader) GetAccount(_ context.Context, key domain.PublicKey) (domain.Account, error) {
	f.calls++
	if f.err != nil {
		return domain.Account{}, f.err
	}
	data, ok := f.accounts[key]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return domain.Account{Data: data}, nil
}

func newTestAdapter(t *testing.T, reader *fakeReader) (*Adapter, *market.FeedTable) {
	t.Helper()
	feeds, err := market.NewFeedTable(market.DefaultFeeds)
	require.NoError(t, err)
	return NewAdapter(reader, feeds, slog.New(slog.NewTextHandler(io.Discard, nil))), feeds
}

func TestParsePriceDataRoundTrip(t *testing.T) {
	in := PriceData{Exponent: -8, Price: 250_012_345_678, Confidence: 1_500_000, Status: domain.PriceStatusTrading, PublishTime: 1_700_000_000}
	out, err := ParsePriceData(encodePriceData(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParsePriceDataRejectsGarbage(t *testing.T) {
	_, err := ParsePriceData([]byte{1, 2, 3})
	assert.Error(t, err)

	buf := encodePriceData(PriceData{Exponent: -8, Price: 1})
	buf[0] = 0
	_, err = ParsePriceData(buf)
	assert.Error(t, err, "bad magic")
}

func TestNormalizeScalesByExponent(t *testing.T) {
	p := PriceData{Exponent: -8, Price: 250_000_000_000, Confidence: 100_000_000}.Normalize("ETH")
	assert.InDelta(t, 2500.0, p.Price, 1e-9)
	assert.InDelta(t, 1.0, p.Confidence, 1e-12)
	assert.Equal(t, int64(250_000_000_000), p.Raw.Price)
	assert.Equal(t, uint64(100_000_000), p.Raw.Confidence)
	assert.GreaterOrEqual(t, p.Confidence, 0.0)
}

func TestFetchBySymbol(t *testing.T) {
	reader := &fakeReader{accounts: map[domain.PublicKey][]byte{}}
	adapter, feeds := newTestAdapter(t, reader)
	ethKey, _ := feeds.FeedKey("ETH")
	reader.accounts[ethKey] = encodePriceData(PriceData{Exponent: -8, Price: 300_000_000_000, Confidence: 50_000_000, Status: domain.PriceStatusTrading, PublishTime: 42})

	price, err := adapter.FetchBySymbol(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, domain.Symbol("ETH"), price.Market)
	assert.InDelta(t, 3000.0, price.Price, 1e-9)
	assert.InDelta(t, 0.5, price.Confidence, 1e-12)
	assert.Equal(t, int64(42), price.PublishTime)
	assert.Equal(t, 1, reader.calls)
}

func TestFetchBySymbolUnsupported(t *testing.T) {
	reader := &fakeReader{}
	adapter, _ := newTestAdapter(t, reader)

	_, err := adapter.FetchBySymbol(context.Background(), "XRP")
	assert.ErrorIs(t, err, domain.ErrUnsupportedMarket)
	assert.Zero(t, reader.calls, "no read for an unregistered symbol")
}

func TestFetchByKeyFailures(t *testing.T) {
	var key domain.PublicKey
	key[31] = 9

	t.Run("missing account", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, &fakeReader{accounts: map[domain.PublicKey][]byte{}})
		_, err := adapter.FetchByKey(context.Background(), key, "")
		assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
	})

	t.Run("transport error", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, &fakeReader{err: errors.New("connection reset")})
		_, err := adapter.FetchByKey(context.Background(), key, "")
		assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
	})

	t.Run("undecodable account", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, &fakeReader{accounts: map[domain.PublicKey][]byte{key: {0xde, 0xad}}})
		_, err := adapter.FetchByKey(context.Background(), key, "")
		assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
		assert.ErrorIs(t, err, domain.ErrDecodeFailure)
	})
}

func TestFetchByKeyLabel(t *testing.T) {
	var key domain.PublicKey
	key[0] = 1
	reader := &fakeReader{accounts: map[domain.PublicKey][]byte{key: encodePriceData(PriceData{Exponent: -2, Price: 12345})}}
	adapter, _ := newTestAdapter(t, reader)

	p, err := adapter.FetchByKey(context.Background(), key, "")
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownAsset, p.Market)
	assert.InDelta(t, 123.45, p.Price, 1e-9)

	p, err = adapter.FetchByKey(context.Background(), key, "SOL")
	require.NoError(t, err)
	assert.Equal(t, domain.Symbol("SOL"), p.Market)
}

// encodePriceData builds a minimal price account, the inverse of
// ParsePriceData.
func encodePriceData(d PriceData) []byte {
	buf := make([]byte, PriceAccountHeaderSize)
	le := binary.LittleEndian
	le.PutUint32(buf[offMagic:], pythMagic)
	le.PutUint32(buf[offVersion:], pythVersion2)
	le.PutUint32(buf[offType:], pythAccountType)
	le.PutUint32(buf[12:], PriceAccountHeaderSize)
	le.PutUint32(buf[offExponent:], uint32(d.Exponent))
	le.PutUint64(buf[offTimestamp:], uint64(d.PublishTime))
	le.PutUint64(buf[offAggPrice:], uint64(d.Price))
	le.PutUint64(buf[offAggConf:], d.Confidence)
	le.PutUint32(buf[offAggStatus:], uint32(d.Status))
	return buf
}
