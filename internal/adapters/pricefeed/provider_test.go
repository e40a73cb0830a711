package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
	"github.com/dbank-service/dbank_service/pkg/logger"
	"github.com/dbank-service/dbank_service/pkg/metrics"
)

type stubProvider struct {
	name  string
	price decimal.Decimal
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Price(_ context.Context, _ *config.NetworkConfig) (decimal.Decimal, error) {
	s.calls++
	return s.price, s.err
}

func testNetwork() *config.NetworkConfig {
	return &config.NetworkConfig{
		ChainID:       8453,
		CoinGeckoID:   "ethereum",
		CoinCapID:     "ethereum",
		BinanceSymbol: "ETHUSDT",
		FallbackPrice: 3200,
	}
}

func TestOracleNativePrice(t *testing.T) {
	log := logger.New("error", "test")

	t.Run("uses first healthy source", func(t *testing.T) {
		primary := &stubProvider{name: "primary", price: decimal.NewFromInt(3000)}
		backup := &stubProvider{name: "backup", price: decimal.NewFromInt(2900)}
		oracle := NewOracle([]Provider{primary, backup}, nil, 0, log)

		price, err := oracle.NativePrice(context.Background(), "base", testNetwork())

		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(3000)))
		assert.Equal(t, 0, backup.calls)
	})

	t.Run("falls through failed sources in order", func(t *testing.T) {
		broken := &stubProvider{name: "broken", err: errors.New("down")}
		zero := &stubProvider{name: "zero", price: decimal.Zero}
		working := &stubProvider{name: "working", price: decimal.NewFromInt(600)}
		oracle := NewOracle([]Provider{broken, zero, working}, nil, 0, log)

		price, err := oracle.NativePrice(context.Background(), "bsc", testNetwork())

		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(600)))
		assert.Equal(t, 1, broken.calls)
		assert.Equal(t, 1, zero.calls)
	})

	t.Run("fallback counter skips the primary source", func(t *testing.T) {
		primary := &stubProvider{name: "cg-test", price: decimal.NewFromInt(3000)}
		backup := &stubProvider{name: "cc-test", price: decimal.NewFromInt(2900)}
		oracle := NewOracle([]Provider{primary, backup}, nil, 0, log)

		primaryBefore := testutil.ToFloat64(metrics.PriceFeedFallbacks.WithLabelValues("cg-test"))
		backupBefore := testutil.ToFloat64(metrics.PriceFeedFallbacks.WithLabelValues("cc-test"))

		_, err := oracle.NativePrice(context.Background(), "base", testNetwork())
		require.NoError(t, err)
		assert.Equal(t, primaryBefore, testutil.ToFloat64(metrics.PriceFeedFallbacks.WithLabelValues("cg-test")))

		primary.err = errors.New("down")
		_, err = oracle.NativePrice(context.Background(), "base", testNetwork())
		require.NoError(t, err)
		assert.Equal(t, backupBefore+1, testutil.ToFloat64(metrics.PriceFeedFallbacks.WithLabelValues("cc-test")))
		assert.Equal(t, primaryBefore, testutil.ToFloat64(metrics.PriceFeedFallbacks.WithLabelValues("cg-test")))
	})

	t.Run("static fallback keeps cascade alive", func(t *testing.T) {
		broken := &stubProvider{name: "broken", err: errors.New("down")}
		oracle := NewOracle([]Provider{broken, NewStatic()}, nil, 0, log)

		price, err := oracle.NativePrice(context.Background(), "base", testNetwork())

		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(3200)))
	})

	t.Run("returns ErrNoPrice when everything fails", func(t *testing.T) {
		broken := &stubProvider{name: "broken", err: errors.New("down")}
		oracle := NewOracle([]Provider{broken}, nil, 0, log)

		_, err := oracle.NativePrice(context.Background(), "base", testNetwork())

		assert.ErrorIs(t, err, ErrNoPrice)
	})
}

func TestCoinGeckoPrice(t *testing.T) {
	t.Run("parses simple price response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/simple/price", r.URL.Path)
			assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
			assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
			fmt.Fprint(w, `{"ethereum":{"usd":3123.45}}`)
		}))
		defer server.Close()

		provider := NewCoinGecko(server.URL, 0)
		price, err := provider.Price(context.Background(), testNetwork())

		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromFloat(3123.45)))
	})

	t.Run("errors on missing entry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		}))
		defer server.Close()

		provider := NewCoinGecko(server.URL, 0)
		_, err := provider.Price(context.Background(), testNetwork())

		assert.Error(t, err)
	})
}

func TestCoinCapPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets/ethereum", r.URL.Path)
		fmt.Fprint(w, `{"data":{"priceUsd":"3050.123"}}`)
	}))
	defer server.Close()

	provider := NewCoinCap(server.URL, 0)
	price, err := provider.Price(context.Background(), testNetwork())

	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("3050.123")))
}

func TestBinancePrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ticker/price", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"symbol":"ETHUSDT","price":"3010.50000000"}`)
	}))
	defer server.Close()

	provider := NewBinance(server.URL, 0)
	price, err := provider.Price(context.Background(), testNetwork())

	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("3010.5")))
}

func TestStaticPrice(t *testing.T) {
	t.Run("returns configured fallback", func(t *testing.T) {
		price, err := NewStatic().Price(context.Background(), testNetwork())
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(3200)))
	})

	t.Run("errors when unconfigured", func(t *testing.T) {
		_, err := NewStatic().Price(context.Background(), &config.NetworkConfig{})
		assert.Error(t, err)
	})
}
