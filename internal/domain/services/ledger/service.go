// Package ledger reconciles verified on-chain deposits into credits and
// moves credits for spends and refunds. Every balance change lands in
// the append-only credit transaction log.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dbank-service/dbank_service/internal/domain/entities"
	domainerrors "github.com/dbank-service/dbank_service/internal/domain/errors"
	"github.com/dbank-service/dbank_service/internal/domain/services/verification"
	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
	"github.com/dbank-service/dbank_service/internal/infrastructure/database"
	"github.com/dbank-service/dbank_service/pkg/logger"
	"github.com/dbank-service/dbank_service/pkg/metrics"
)

// PaymentVerifier checks a payment on chain
type PaymentVerifier interface {
	Verify(ctx context.Context, req verification.Request) (*entities.TransferDetails, error)
}

// ProfileRepository defines profile operations the ledger service needs
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.Profile, error)
	Create(ctx context.Context, profile *entities.Profile) error
	AddCredits(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
	AddCreditsTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64) (int64, error)
	SpendCredits(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
}

// LedgerRepository defines credit log operations the service needs
type LedgerRepository interface {
	Append(ctx context.Context, entry *entities.CreditTransaction) error
	AppendTx(ctx context.Context, tx *sql.Tx, entry *entities.CreditTransaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.CreditTransaction, error)
	HashMentioned(ctx context.Context, txHash string) (bool, error)
}

// UsedHashRepository defines replay guard operations the service needs
type UsedHashRepository interface {
	IsUsed(ctx context.Context, txHash string) (bool, error)
	MarkUsedTx(ctx context.Context, tx *sql.Tx, record *entities.UsedTransactionHash) error
}

// Service reconciles deposits and moves credits
type Service struct {
	verifier   PaymentVerifier
	profiles   ProfileRepository
	entries    LedgerRepository
	usedHashes UsedHashRepository
	credits    config.CreditsConfig
	logger     *logger.Logger

	runTx func(ctx context.Context, fn func(*sql.Tx) error) error
}

// NewService creates a ledger service
func NewService(
	db *sql.DB,
	verifier PaymentVerifier,
	profiles ProfileRepository,
	entries LedgerRepository,
	usedHashes UsedHashRepository,
	credits config.CreditsConfig,
	logger *logger.Logger,
) *Service {
	return &Service{
		verifier:   verifier,
		profiles:   profiles,
		entries:    entries,
		usedHashes: usedHashes,
		credits:    credits,
		logger:     logger,
		runTx: func(ctx context.Context, fn func(*sql.Tx) error) error {
			return database.WithTransaction(ctx, db, fn)
		},
	}
}

// ReconcileDeposit verifies an on-chain deposit and converts it to
// credits. The used-hash insert, balance update and ledger entry commit
// together, so a deposit is either fully credited or not at all. The
// unique index on the hash decides concurrent redemptions of the same
// transaction.
func (s *Service) ReconcileDeposit(ctx context.Context, userID uuid.UUID, email, txHash string, network entities.Network) (*entities.VerifyPaymentResponse, error) {
	txHash = strings.ToLower(strings.TrimSpace(txHash))

	if _, err := s.EnsureProfile(ctx, userID, email); err != nil {
		return nil, err
	}

	// Cheap pre-checks before hitting the explorer. The insert inside
	// the transaction below remains the authoritative guard.
	used, err := s.usedHashes.IsUsed(ctx, txHash)
	if err != nil {
		// The ledger scan still catches replays, and the insert below
		// is the final arbiter either way.
		s.logger.Warn("Used-hash lookup failed, falling back to ledger scan",
			"tx_hash", txHash, "error", err)
		used = false
	}
	if !used {
		used, err = s.entries.HashMentioned(ctx, txHash)
		if err != nil {
			return nil, fmt.Errorf("scan ledger for hash: %w", err)
		}
	}
	if used {
		return nil, domainerrors.ErrTransactionAlreadyUsed
	}

	details, err := s.verifier.Verify(ctx, verification.Request{
		TxHash:            txHash,
		Network:           network,
		ExpectedRecipient: s.credits.DepositWallet,
		ExpectedAsset:     entities.AssetAny,
		MinAmountUSD:      decimal.NewFromInt(s.credits.MinDepositUSD),
	})
	if err != nil {
		return nil, err
	}

	creditsToAdd := details.AmountUSD.Div(decimal.NewFromInt(s.credits.PricePerCredit)).IntPart()
	if creditsToAdd < 1 {
		// Unreachable when MinDepositUSD >= PricePerCredit, kept as a
		// guard against misconfiguration.
		return nil, fmt.Errorf("Amount too low. Expected at least $%d, got $%s",
			s.credits.MinDepositUSD, details.AmountUSD.StringFixed(2))
	}

	var newBalance int64
	err = s.runTx(ctx, func(tx *sql.Tx) error {
		if err := s.usedHashes.MarkUsedTx(ctx, tx, &entities.UsedTransactionHash{
			TxHash:    txHash,
			UserID:    userID,
			Network:   network,
			AmountUSD: details.AmountUSD,
			Credits:   creditsToAdd,
		}); err != nil {
			return err
		}

		balance, err := s.profiles.AddCreditsTx(ctx, tx, userID, creditsToAdd)
		if err != nil {
			return err
		}
		newBalance = balance

		return s.entries.AppendTx(ctx, tx, &entities.CreditTransaction{
			UserID: userID,
			Type:   entities.TransactionTypeDeposit,
			Amount: creditsToAdd,
			Description: fmt.Sprintf("Deposit of $%s (%s on %s), tx %s",
				details.AmountUSD.StringFixed(2), details.Symbol, network, txHash),
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.CreditsGranted.Add(float64(creditsToAdd))
	s.logger.Info("Deposit reconciled",
		"user_id", userID.String(),
		"tx_hash", txHash,
		"network", string(network),
		"amount_usd", details.AmountUSD.String(),
		"credits", creditsToAdd)

	return &entities.VerifyPaymentResponse{
		Success:      true,
		CreditsAdded: creditsToAdd,
		NewBalance:   newBalance,
		AmountUSD:    details.AmountUSD,
		TxHash:       txHash,
		Network:      network,
		VerifiedAt:   time.Now(),
	}, nil
}

// SpendCredits debits a user's balance and records the spend. The
// balance update uses the guarded decrement, so a concurrent spend can
// never push the balance negative.
func (s *Service) SpendCredits(ctx context.Context, userID uuid.UUID, amount int64, txType entities.TransactionType, description string) (int64, error) {
	newBalance, err := s.profiles.SpendCredits(ctx, userID, amount)
	if err != nil {
		return 0, err
	}

	if err := s.entries.Append(ctx, &entities.CreditTransaction{
		UserID:      userID,
		Type:        txType,
		Amount:      -amount,
		Description: description,
	}); err != nil {
		// The balance moved but the log write failed. Put the credits
		// back so balance and ledger stay consistent.
		s.logger.Error("Ledger write failed after spend, refunding",
			"user_id", userID.String(), "amount", amount, "error", err)
		if _, refundErr := s.profiles.AddCredits(ctx, userID, amount); refundErr != nil {
			s.logger.Error("Refund after failed ledger write also failed",
				"user_id", userID.String(), "amount", amount, "error", refundErr)
		}
		return 0, fmt.Errorf("record spend: %w", err)
	}

	return newBalance, nil
}

// RefundCredits returns credits to a user after a downstream failure
func (s *Service) RefundCredits(ctx context.Context, userID uuid.UUID, amount int64, description string) (int64, error) {
	newBalance, err := s.profiles.AddCredits(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("refund credits: %w", err)
	}

	if err := s.entries.Append(ctx, &entities.CreditTransaction{
		UserID:      userID,
		Type:        entities.TransactionTypeRefund,
		Amount:      amount,
		Description: description,
	}); err != nil {
		s.logger.Error("Failed to record refund", "user_id", userID.String(), "amount", amount, "error", err)
		return newBalance, fmt.Errorf("record refund: %w", err)
	}

	return newBalance, nil
}

// GetBalance returns a user's credit balance and recent history,
// creating the profile on first touch.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID, email string, historyLimit int) (*entities.CreditBalanceResponse, error) {
	profile, err := s.EnsureProfile(ctx, userID, email)
	if err != nil {
		return nil, err
	}

	history, err := s.entries.ListByUser(ctx, userID, historyLimit)
	if err != nil {
		return nil, err
	}

	return &entities.CreditBalanceResponse{
		Credits: profile.Credits,
		History: history,
	}, nil
}

// EnsureProfile fetches a user's profile, creating it on first touch
func (s *Service) EnsureProfile(ctx context.Context, userID uuid.UUID, email string) (*entities.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domainerrors.ErrProfileNotFound) {
		return nil, err
	}

	profile = &entities.Profile{
		ID:     uuid.New(),
		UserID: userID,
		Email:  email,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// Lost a race with a concurrent first request.
		if existing, getErr := s.profiles.GetByUserID(ctx, userID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return profile, nil
}
