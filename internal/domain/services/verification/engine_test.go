package verification

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbank-service/dbank_service/internal/adapters/explorer"
	"github.com/dbank-service/dbank_service/internal/domain/entities"
	domainerrors "github.com/dbank-service/dbank_service/internal/domain/errors"
	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
	"github.com/dbank-service/dbank_service/pkg/logger"
)

const (
	depositWallet = "0x1111111111111111111111111111111111111111"
	otherWallet   = "0x2222222222222222222222222222222222222222"
	usdcContract  = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
)

type mockChain struct {
	receipt *explorer.Receipt
	tx      *explorer.Transaction
	rcptErr error
	txErr   error
}

func (m *mockChain) GetTransactionReceipt(_ context.Context, _ int64, _ string) (*explorer.Receipt, error) {
	return m.receipt, m.rcptErr
}

func (m *mockChain) GetTransactionByHash(_ context.Context, _ int64, _ string) (*explorer.Transaction, error) {
	return m.tx, m.txErr
}

type mockPrices struct {
	price decimal.Decimal
	err   error
}

func (m *mockPrices) NativePrice(_ context.Context, _ string, _ *config.NetworkConfig) (decimal.Decimal, error) {
	return m.price, m.err
}

func testNetworks() map[string]config.NetworkConfig {
	return map[string]config.NetworkConfig{
		"base": {
			ChainID: 8453,
			Tokens: map[string]config.TokenConfig{
				"usdc": {Address: usdcContract, Decimals: 6},
			},
			FallbackPrice:  3200,
			NativeDecimals: 18,
		},
	}
}

// paddedTopic left-pads an address to a 32-byte event topic
func paddedTopic(addr string) string {
	return "0x000000000000000000000000" + addr[2:]
}

// tokenAmountHex encodes a USD amount in 6-decimal token units
func tokenAmountHex(usd int64) string {
	units := new(big.Int).Mul(big.NewInt(usd), big.NewInt(1_000_000))
	return "0x" + units.Text(16)
}

// weiHex encodes whole native tokens as hex wei
func weiHex(tokens float64) string {
	wei := decimal.NewFromFloat(tokens).Mul(decimal.New(1, 18))
	return "0x" + wei.BigInt().Text(16)
}

func usdcLog(recipient string, usd int64) explorer.Log {
	return explorer.Log{
		Address: usdcContract,
		Topics: []string{
			TransferEventTopic,
			paddedTopic(otherWallet),
			paddedTopic(recipient),
		},
		Data: tokenAmountHex(usd),
	}
}

func usdcReceipt(recipient string, usd int64) *explorer.Receipt {
	return &explorer.Receipt{
		Status: "0x1",
		Logs:   []explorer.Log{usdcLog(recipient, usd)},
	}
}

func newTestEngine(chain ChainReader, prices PriceSource) *Engine {
	return NewEngine(chain, prices, testNetworks(), logger.New("error", "test"))
}

func baseRequest() Request {
	return Request{
		TxHash:            "0xabc",
		Network:           entities.NetworkBase,
		ExpectedRecipient: depositWallet,
		ExpectedAsset:     entities.AssetAny,
		MinAmountUSD:      decimal.NewFromInt(15),
	}
}

func TestVerifyStablecoinDeposit(t *testing.T) {
	t.Run("accepts a valid USDC transfer", func(t *testing.T) {
		engine := newTestEngine(&mockChain{receipt: usdcReceipt(depositWallet, 45)}, &mockPrices{})

		details, err := engine.Verify(context.Background(), baseRequest())

		require.NoError(t, err)
		assert.Equal(t, entities.Asset("usdc"), details.Asset)
		assert.Equal(t, depositWallet, details.Recipient)
		assert.True(t, details.AmountUSD.Equal(decimal.NewFromInt(45)))
		assert.False(t, details.IsNative)
	})

	t.Run("rejects wrong recipient", func(t *testing.T) {
		// No token transfer pays the wallet, so the engine falls back
		// to the transaction itself; a token payment carries the
		// contract as tx.to and no native value.
		engine := newTestEngine(&mockChain{
			receipt: usdcReceipt(otherWallet, 45),
			tx:      &explorer.Transaction{To: usdcContract, Value: "0x0"},
		}, &mockPrices{})

		_, err := engine.Verify(context.Background(), baseRequest())

		assert.ErrorIs(t, err, domainerrors.ErrRecipientMismatch)
	})

	t.Run("accepts the transfer that pays the wallet in a routed transaction", func(t *testing.T) {
		receipt := &explorer.Receipt{
			Status: "0x1",
			Logs: []explorer.Log{
				usdcLog(otherWallet, 500),
				usdcLog(depositWallet, 45),
			},
		}
		engine := newTestEngine(&mockChain{receipt: receipt}, &mockPrices{})

		details, err := engine.Verify(context.Background(), baseRequest())

		require.NoError(t, err)
		assert.Equal(t, depositWallet, details.Recipient)
		assert.True(t, details.AmountUSD.Equal(decimal.NewFromInt(45)))
	})

	t.Run("no transfer to the wallet when a specific stablecoin is expected", func(t *testing.T) {
		engine := newTestEngine(&mockChain{receipt: usdcReceipt(otherWallet, 45)}, &mockPrices{})

		req := baseRequest()
		req.ExpectedAsset = entities.AssetUSDC
		_, err := engine.Verify(context.Background(), req)

		assert.ErrorIs(t, err, domainerrors.ErrNoTransferFound)
	})

	t.Run("rejects amount below minimum", func(t *testing.T) {
		engine := newTestEngine(&mockChain{receipt: usdcReceipt(depositWallet, 10)}, &mockPrices{})

		_, err := engine.Verify(context.Background(), baseRequest())

		require.Error(t, err)
		assert.Equal(t, "Amount too low. Expected at least $15, got $10.00", err.Error())
	})

	t.Run("accepts amount exactly at minimum", func(t *testing.T) {
		engine := newTestEngine(&mockChain{receipt: usdcReceipt(depositWallet, 15)}, &mockPrices{})

		_, err := engine.Verify(context.Background(), baseRequest())

		assert.NoError(t, err)
	})
}

func TestVerifyTransactionState(t *testing.T) {
	t.Run("unsupported network", func(t *testing.T) {
		engine := newTestEngine(&mockChain{}, &mockPrices{})

		req := baseRequest()
		req.Network = "solana"
		_, err := engine.Verify(context.Background(), req)

		require.Error(t, err)
		assert.Equal(t, "Unsupported network: solana", err.Error())
	})

	t.Run("transaction not found", func(t *testing.T) {
		engine := newTestEngine(&mockChain{rcptErr: fmt.Errorf("lookup: %w", explorer.ErrTxNotFound)}, &mockPrices{})

		_, err := engine.Verify(context.Background(), baseRequest())

		assert.ErrorIs(t, err, domainerrors.ErrTransactionNotFound)
	})

	t.Run("reverted transaction", func(t *testing.T) {
		engine := newTestEngine(&mockChain{receipt: &explorer.Receipt{Status: "0x0"}}, &mockPrices{})

		_, err := engine.Verify(context.Background(), baseRequest())

		assert.ErrorIs(t, err, domainerrors.ErrTransactionFailed)
	})

	t.Run("explorer failure surfaces as internal error", func(t *testing.T) {
		engine := newTestEngine(&mockChain{rcptErr: errors.New("rate limited")}, &mockPrices{})

		_, err := engine.Verify(context.Background(), baseRequest())

		require.Error(t, err)
		assert.NotErrorIs(t, err, domainerrors.ErrTransactionNotFound)
	})
}

func TestVerifyNativeFallback(t *testing.T) {
	nativeChain := func(to string, tokens float64) *mockChain {
		return &mockChain{
			receipt: &explorer.Receipt{Status: "0x1"},
			tx:      &explorer.Transaction{To: to, Value: weiHex(tokens)},
		}
	}

	t.Run("accepts native payment priced in USD", func(t *testing.T) {
		engine := newTestEngine(nativeChain(depositWallet, 0.01), &mockPrices{price: decimal.NewFromInt(3200)})

		details, err := engine.Verify(context.Background(), baseRequest())

		require.NoError(t, err)
		assert.True(t, details.IsNative)
		assert.True(t, details.AmountUSD.Equal(decimal.NewFromInt(32)))
	})

	t.Run("no fallback when a specific stablecoin is expected", func(t *testing.T) {
		engine := newTestEngine(nativeChain(depositWallet, 1), &mockPrices{price: decimal.NewFromInt(3200)})

		req := baseRequest()
		req.ExpectedAsset = entities.AssetUSDC
		_, err := engine.Verify(context.Background(), req)

		assert.ErrorIs(t, err, domainerrors.ErrNoTransferFound)
	})

	t.Run("price outage maps to price unavailable", func(t *testing.T) {
		engine := newTestEngine(nativeChain(depositWallet, 1), &mockPrices{err: errors.New("all feeds down")})

		_, err := engine.Verify(context.Background(), baseRequest())

		assert.ErrorIs(t, err, domainerrors.ErrPriceUnavailable)
	})

	t.Run("zero value transfer is rejected", func(t *testing.T) {
		engine := newTestEngine(nativeChain(depositWallet, 0), &mockPrices{price: decimal.NewFromInt(3200)})

		_, err := engine.Verify(context.Background(), baseRequest())

		assert.ErrorIs(t, err, domainerrors.ErrNoTransferFound)
	})

	t.Run("native recipient mismatch", func(t *testing.T) {
		engine := newTestEngine(nativeChain(otherWallet, 1), &mockPrices{price: decimal.NewFromInt(3200)})

		_, err := engine.Verify(context.Background(), baseRequest())

		assert.ErrorIs(t, err, domainerrors.ErrRecipientMismatch)
	})
}

func TestDecodeHelpers(t *testing.T) {
	t.Run("topicAddress strips padding", func(t *testing.T) {
		assert.Equal(t, depositWallet, topicAddress(paddedTopic(depositWallet)))
	})

	t.Run("hexToDecimal scales by decimals", func(t *testing.T) {
		amount, err := hexToDecimal(tokenAmountHex(45), 6)
		require.NoError(t, err)
		assert.True(t, amount.Equal(decimal.NewFromInt(45)))
	})

	t.Run("hexToDecimal rejects garbage", func(t *testing.T) {
		_, err := hexToDecimal("0xzzzz", 6)
		assert.Error(t, err)
	})

	t.Run("empty value decodes to zero", func(t *testing.T) {
		amount, err := decodeNativeAmount("0x")
		require.NoError(t, err)
		assert.True(t, amount.IsZero())
	})
}
