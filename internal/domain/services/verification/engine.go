// Package verification checks on-chain payments against an expected
// recipient and USD amount. It is the trust boundary between user
// supplied transaction hashes and the credit ledger.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dbank-service/dbank_service/internal/adapters/explorer"
	"github.com/dbank-service/dbank_service/internal/domain/entities"
	domainerrors "github.com/dbank-service/dbank_service/internal/domain/errors"
	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
	"github.com/dbank-service/dbank_service/pkg/logger"
	"github.com/dbank-service/dbank_service/pkg/metrics"
)

// ChainReader fetches transaction data from a block explorer
type ChainReader interface {
	GetTransactionByHash(ctx context.Context, chainID int64, txHash string) (*explorer.Transaction, error)
	GetTransactionReceipt(ctx context.Context, chainID int64, txHash string) (*explorer.Receipt, error)
}

// PriceSource resolves native token USD prices
type PriceSource interface {
	NativePrice(ctx context.Context, networkName string, network *config.NetworkConfig) (decimal.Decimal, error)
}

// Request describes one payment to verify
type Request struct {
	TxHash            string
	Network           entities.Network
	ExpectedRecipient string
	ExpectedAsset     entities.Asset
	MinAmountUSD      decimal.Decimal
}

// Engine verifies on-chain payments
type Engine struct {
	chain    ChainReader
	prices   PriceSource
	networks map[string]config.NetworkConfig
	logger   *logger.Logger
}

// NewEngine creates a verification engine
func NewEngine(chain ChainReader, prices PriceSource, networks map[string]config.NetworkConfig, logger *logger.Logger) *Engine {
	return &Engine{
		chain:    chain,
		prices:   prices,
		networks: networks,
		logger:   logger,
	}
}

// Verify checks that the transaction exists, succeeded, paid the
// expected recipient, and carried at least the expected USD value.
// Stablecoin transfers are checked first; a native transfer is only
// considered when the expected asset allows it.
func (e *Engine) Verify(ctx context.Context, req Request) (*entities.TransferDetails, error) {
	network, ok := e.networks[string(req.Network)]
	if !ok {
		return nil, fmt.Errorf("Unsupported network: %s", req.Network)
	}

	details, err := e.verify(ctx, req, &network)
	outcome := "verified"
	if err != nil {
		outcome = "rejected"
	}
	metrics.VerificationOutcomes.WithLabelValues(string(req.Network), outcome).Inc()
	return details, err
}

func (e *Engine) verify(ctx context.Context, req Request, network *config.NetworkConfig) (*entities.TransferDetails, error) {
	receipt, err := e.chain.GetTransactionReceipt(ctx, network.ChainID, req.TxHash)
	if err != nil {
		if errors.Is(err, explorer.ErrTxNotFound) {
			return nil, domainerrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}

	if !strings.EqualFold(receipt.Status, "0x1") {
		return nil, domainerrors.ErrTransactionFailed
	}

	tokens := e.expectedTokens(req.ExpectedAsset, network)
	transfers, err := decodeTokenTransfers(receipt.Logs, tokens)
	if err != nil {
		return nil, err
	}

	// A routed payment can move the token several times in one
	// transaction; only the transfer that pays the expected recipient
	// counts. Non-matching transfers are skipped, not rejected.
	for _, transfer := range transfers {
		if !strings.EqualFold(transfer.Recipient, req.ExpectedRecipient) {
			continue
		}
		return e.checkTransfer(req, &entities.TransferDetails{
			Recipient: transfer.Recipient,
			Asset:     entities.Asset(transfer.Symbol),
			Symbol:    strings.ToUpper(transfer.Symbol),
			AmountUSD: transfer.Amount,
		})
	}

	// Native coin payments don't emit logs, so fall back to the
	// transaction itself. Never accepted when the caller asked for a
	// specific stablecoin.
	if req.ExpectedAsset != entities.AssetNative && req.ExpectedAsset != entities.AssetAny {
		return nil, domainerrors.ErrNoTransferFound
	}

	tx, err := e.chain.GetTransactionByHash(ctx, network.ChainID, req.TxHash)
	if err != nil {
		if errors.Is(err, explorer.ErrTxNotFound) {
			return nil, domainerrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}

	if !strings.EqualFold(tx.To, req.ExpectedRecipient) {
		e.logger.Warn("Deposit recipient mismatch",
			"tx_hash", req.TxHash,
			"recipient", strings.ToLower(tx.To),
			"expected", req.ExpectedRecipient)
		return nil, domainerrors.ErrRecipientMismatch
	}

	amount, err := decodeNativeAmount(tx.Value)
	if err != nil {
		return nil, fmt.Errorf("decode native amount: %w", err)
	}
	if amount.IsZero() {
		return nil, domainerrors.ErrNoTransferFound
	}

	price, err := e.prices.NativePrice(ctx, string(req.Network), network)
	if err != nil {
		e.logger.Error("Native price lookup failed", "network", req.Network, "error", err)
		return nil, domainerrors.ErrPriceUnavailable
	}

	return e.checkTransfer(req, &entities.TransferDetails{
		Recipient: strings.ToLower(tx.To),
		Asset:     entities.AssetNative,
		Symbol:    "NATIVE",
		AmountUSD: amount.Mul(price),
		IsNative:  true,
	})
}

// checkTransfer enforces the recipient and minimum amount rules
func (e *Engine) checkTransfer(req Request, details *entities.TransferDetails) (*entities.TransferDetails, error) {
	if !strings.EqualFold(details.Recipient, req.ExpectedRecipient) {
		e.logger.Warn("Deposit recipient mismatch",
			"tx_hash", req.TxHash,
			"recipient", details.Recipient,
			"expected", req.ExpectedRecipient)
		return nil, domainerrors.ErrRecipientMismatch
	}

	if details.AmountUSD.LessThan(req.MinAmountUSD) {
		return nil, fmt.Errorf("Amount too low. Expected at least $%s, got $%s",
			req.MinAmountUSD.String(), details.AmountUSD.StringFixed(2))
	}

	return details, nil
}

// expectedTokens narrows the token set when a specific stablecoin is
// expected
func (e *Engine) expectedTokens(asset entities.Asset, network *config.NetworkConfig) map[string]config.TokenConfig {
	switch asset {
	case entities.AssetUSDT, entities.AssetUSDC:
		if token, ok := network.Tokens[string(asset)]; ok {
			return map[string]config.TokenConfig{string(asset): token}
		}
		return nil
	case entities.AssetNative:
		return nil
	default:
		return network.Tokens
	}
}
