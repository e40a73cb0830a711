// Package card manages virtual prepaid cards: issuing, funding,
// freezing and the pre-funded card inventory. Card money lives at the
// issuer; this service keeps the credit ledger and the local card
// records in step with it.
package card

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dbank-service/dbank_service/internal/adapters/issuer"
	"github.com/dbank-service/dbank_service/internal/domain/entities"
	domainerrors "github.com/dbank-service/dbank_service/internal/domain/errors"
	"github.com/dbank-service/dbank_service/internal/domain/services/verification"
	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
	"github.com/dbank-service/dbank_service/internal/infrastructure/database"
	"github.com/dbank-service/dbank_service/pkg/logger"
)

// CreateCardCostCredits is the issuing fee in credits
const CreateCardCostCredits = 1

// IssuerClient defines the issuer API operations the service needs
type IssuerClient interface {
	CreateCard(ctx context.Context, req *issuer.CreateCardRequest) (*issuer.Card, error)
	TopUpCard(ctx context.Context, cardID string, req *issuer.TopUpRequest) (*issuer.Card, error)
	FreezeCard(ctx context.Context, cardID string) (*issuer.Card, error)
	UnfreezeCard(ctx context.Context, cardID string) (*issuer.Card, error)
	ListTransactions(ctx context.Context, cardID string) (*issuer.ListTransactionsResponse, error)
}

// CreditMover defines the ledger operations the service needs
type CreditMover interface {
	SpendCredits(ctx context.Context, userID uuid.UUID, amount int64, txType entities.TransactionType, description string) (int64, error)
	RefundCredits(ctx context.Context, userID uuid.UUID, amount int64, description string) (int64, error)
	EnsureProfile(ctx context.Context, userID uuid.UUID, email string) (*entities.Profile, error)
}

// PaymentVerifier checks a payment on chain
type PaymentVerifier interface {
	Verify(ctx context.Context, req verification.Request) (*entities.TransferDetails, error)
}

// CardRepository defines card persistence operations the service needs
type CardRepository interface {
	Create(ctx context.Context, card *entities.Card) error
	GetByID(ctx context.Context, cardID, userID uuid.UUID) (*entities.Card, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Card, error)
	UpdateStatus(ctx context.Context, cardID uuid.UUID, status entities.CardStatus) error
	UpdateBalance(ctx context.Context, cardID uuid.UUID, balance decimal.Decimal) error
}

// TopUpRepository defines crypto top-up tracking operations
type TopUpRepository interface {
	Create(ctx context.Context, record *entities.CardTopUpRecord) error
	GetByHash(ctx context.Context, txHash string) (*entities.CardTopUpRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.CardTopUpStatus) error
}

// UsedHashRepository defines the replay guard shared with deposits
type UsedHashRepository interface {
	IsUsed(ctx context.Context, txHash string) (bool, error)
	MarkUsedTx(ctx context.Context, tx *sql.Tx, record *entities.UsedTransactionHash) error
}

// PreloadRepository defines preload inventory operations
type PreloadRepository interface {
	ListAvailable(ctx context.Context) ([]*entities.PreloadCard, error)
	NextAvailable(ctx context.Context) (*entities.PreloadCard, error)
	MarkSoldTx(ctx context.Context, tx *sql.Tx, cardID, userID uuid.UUID) error
	RecordPurchaseTx(ctx context.Context, tx *sql.Tx, purchase *entities.PreloadPurchase) error
}

// Service manages cards
type Service struct {
	issuer     IssuerClient
	cards      CardRepository
	topUps     TopUpRepository
	preloads   PreloadRepository
	usedHashes UsedHashRepository
	credits    CreditMover
	verifier   PaymentVerifier
	cfg        config.CreditsConfig
	logger     *logger.Logger

	runTx func(ctx context.Context, fn func(*sql.Tx) error) error
}

// NewService creates a card service
func NewService(
	db *sql.DB,
	issuerClient IssuerClient,
	cards CardRepository,
	topUps TopUpRepository,
	preloads PreloadRepository,
	usedHashes UsedHashRepository,
	credits CreditMover,
	verifier PaymentVerifier,
	cfg config.CreditsConfig,
	logger *logger.Logger,
) *Service {
	return &Service{
		issuer:     issuerClient,
		cards:      cards,
		topUps:     topUps,
		preloads:   preloads,
		usedHashes: usedHashes,
		credits:    credits,
		verifier:   verifier,
		cfg:        cfg,
		logger:     logger,
		runTx: func(ctx context.Context, fn func(*sql.Tx) error) error {
			return database.WithTransaction(ctx, db, fn)
		},
	}
}

// CreateCard spends one credit and issues a new virtual card. The
// credit comes back if the issuer call fails.
func (s *Service) CreateCard(ctx context.Context, userID uuid.UUID, email, nickname string) (*entities.CreateCardResponse, error) {
	if _, err := s.credits.EnsureProfile(ctx, userID, email); err != nil {
		return nil, err
	}

	newBalance, err := s.credits.SpendCredits(ctx, userID, CreateCardCostCredits,
		entities.TransactionTypeCardCreation, "Card creation fee")
	if err != nil {
		return nil, err
	}

	issued, err := s.issuer.CreateCard(ctx, &issuer.CreateCardRequest{Nickname: nickname, Currency: "USD"})
	if err != nil {
		s.logger.Error("Issuer card creation failed, refunding", "user_id", userID.String(), "error", err)
		if balance, refundErr := s.credits.RefundCredits(ctx, userID, CreateCardCostCredits,
			"Refund: card creation failed"); refundErr == nil {
			newBalance = balance
		}
		return nil, fmt.Errorf("issue card: %w", err)
	}

	card := &entities.Card{
		ID:           uuid.New(),
		UserID:       userID,
		IssuerCardID: issued.ID,
		Status:       entities.CardStatusActive,
		Last4:        issued.Last4,
		Expiry:       issued.Expiry,
		Balance:      issued.Balance,
		Currency:     issued.Currency,
	}
	if err := s.cards.Create(ctx, card); err != nil {
		// The card exists at the issuer but the local record failed.
		// Keep the charge; the card stays recoverable by issuer ID.
		s.logger.Error("Failed to store issued card",
			"user_id", userID.String(), "issuer_card_id", issued.ID, "error", err)
		return nil, err
	}

	return &entities.CreateCardResponse{Card: card, NewBalance: newBalance}, nil
}

// TopUpCard funds a card from the user's credit balance. The amount
// must be a whole multiple of the credit price.
func (s *Service) TopUpCard(ctx context.Context, userID, cardID uuid.UUID, amountUSD int64) (*entities.TopUpCardResponse, error) {
	card, err := s.cards.GetByID(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}
	if card.Status != entities.CardStatusActive {
		return nil, domainerrors.ErrCardNotActive
	}

	if amountUSD < s.cfg.PricePerCredit || amountUSD%s.cfg.PricePerCredit != 0 {
		return nil, domainerrors.ValidationError("amount_usd",
			fmt.Sprintf("Amount must be a multiple of $%d", s.cfg.PricePerCredit))
	}
	creditsToSpend := amountUSD / s.cfg.PricePerCredit

	newBalance, err := s.credits.SpendCredits(ctx, userID, creditsToSpend,
		entities.TransactionTypeCardTopUp,
		fmt.Sprintf("Card top-up of $%d to card %s", amountUSD, card.Last4))
	if err != nil {
		return nil, err
	}

	updated, err := s.issuer.TopUpCard(ctx, card.IssuerCardID, &issuer.TopUpRequest{
		Amount: decimal.NewFromInt(amountUSD),
	})
	if err != nil {
		s.logger.Error("Issuer top-up failed, refunding",
			"user_id", userID.String(), "card_id", cardID.String(), "error", err)
		if balance, refundErr := s.credits.RefundCredits(ctx, userID, creditsToSpend,
			fmt.Sprintf("Refund: card top-up of $%d failed", amountUSD)); refundErr == nil {
			newBalance = balance
		}
		return nil, fmt.Errorf("top up card: %w", err)
	}

	card.Balance = updated.Balance
	if err := s.cards.UpdateBalance(ctx, cardID, updated.Balance); err != nil {
		s.logger.Warn("Failed to store updated card balance", "card_id", cardID.String(), "error", err)
	}

	return &entities.TopUpCardResponse{
		Card:         card,
		CreditsSpent: creditsToSpend,
		NewBalance:   newBalance,
	}, nil
}

// VerifyCardTopUp settles a crypto-funded card top-up. The payment must
// be the stablecoin the client claims, sent to the dedicated top-up
// wallet, and the hash is claimed before the issuer is called, so the
// same payment can never fund two top-ups.
func (s *Service) VerifyCardTopUp(ctx context.Context, userID, cardID uuid.UUID, txHash string, network entities.Network, asset entities.Asset) (*entities.VerifyCardTopUpResponse, error) {
	txHash = strings.ToLower(strings.TrimSpace(txHash))

	card, err := s.cards.GetByID(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}
	if card.Status != entities.CardStatusActive {
		return nil, domainerrors.ErrCardNotActive
	}

	details, err := s.verifier.Verify(ctx, verification.Request{
		TxHash:            txHash,
		Network:           network,
		ExpectedRecipient: s.cfg.CardTopUpWallet,
		ExpectedAsset:     asset,
		MinAmountUSD:      decimal.NewFromInt(s.cfg.MinCardTopUpUSD),
	})
	if err != nil {
		return nil, err
	}

	record := &entities.CardTopUpRecord{
		UserID:    userID,
		CardID:    cardID,
		TxHash:    txHash,
		Network:   network,
		AmountUSD: details.AmountUSD,
		Status:    entities.CardTopUpStatusPending,
	}
	if err := s.topUps.Create(ctx, record); err != nil {
		if !errors.Is(err, domainerrors.ErrTransactionAlreadyUsed) {
			return nil, err
		}
		// A row stuck in failed means the issuer call never settled.
		// The payer keeps the right to retry their own payment.
		existing, getErr := s.topUps.GetByHash(ctx, txHash)
		if getErr != nil {
			return nil, err
		}
		if existing.Status != entities.CardTopUpStatusFailed ||
			existing.UserID != userID || existing.CardID != cardID {
			return nil, domainerrors.ErrTransactionAlreadyUsed
		}
		s.logger.Info("Retrying failed card top-up settlement",
			"topup_id", existing.ID.String(), "tx_hash", txHash)
		record = existing
	}

	// Whole dollars only; the issuer does not take cents via top-up.
	fundAmount := details.AmountUSD.Floor()
	updated, err := s.issuer.TopUpCard(ctx, card.IssuerCardID, &issuer.TopUpRequest{Amount: fundAmount})
	if err != nil {
		if stErr := s.topUps.UpdateStatus(ctx, record.ID, entities.CardTopUpStatusFailed); stErr != nil {
			s.logger.Error("Failed to mark top-up failed", "topup_id", record.ID.String(), "error", stErr)
		}
		return nil, fmt.Errorf("top up card: %w", err)
	}

	if err := s.topUps.UpdateStatus(ctx, record.ID, entities.CardTopUpStatusCompleted); err != nil {
		s.logger.Error("Failed to mark top-up completed", "topup_id", record.ID.String(), "error", err)
	}
	if err := s.cards.UpdateBalance(ctx, cardID, updated.Balance); err != nil {
		s.logger.Warn("Failed to store updated card balance", "card_id", cardID.String(), "error", err)
	}

	s.logger.Info("Crypto card top-up settled",
		"user_id", userID.String(),
		"card_id", cardID.String(),
		"tx_hash", txHash,
		"amount_usd", details.AmountUSD.String())

	return &entities.VerifyCardTopUpResponse{
		Success:   true,
		CardID:    cardID.String(),
		AmountUSD: details.AmountUSD,
		TxHash:    txHash,
	}, nil
}

// FreezeCard freezes an active card
func (s *Service) FreezeCard(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error) {
	return s.setFrozen(ctx, userID, cardID, true)
}

// UnfreezeCard reactivates a frozen card
func (s *Service) UnfreezeCard(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error) {
	return s.setFrozen(ctx, userID, cardID, false)
}

func (s *Service) setFrozen(ctx context.Context, userID, cardID uuid.UUID, freeze bool) (*entities.Card, error) {
	card, err := s.cards.GetByID(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}

	var target entities.CardStatus
	if freeze {
		if card.Status != entities.CardStatusActive {
			return nil, domainerrors.ErrCardNotActive
		}
		if _, err := s.issuer.FreezeCard(ctx, card.IssuerCardID); err != nil {
			return nil, fmt.Errorf("freeze card: %w", err)
		}
		target = entities.CardStatusFrozen
	} else {
		if card.Status != entities.CardStatusFrozen {
			return nil, domainerrors.ConflictError("card", "card is not frozen")
		}
		if _, err := s.issuer.UnfreezeCard(ctx, card.IssuerCardID); err != nil {
			return nil, fmt.Errorf("unfreeze card: %w", err)
		}
		target = entities.CardStatusActive
	}

	if err := s.cards.UpdateStatus(ctx, cardID, target); err != nil {
		return nil, err
	}
	card.Status = target
	return card, nil
}

// ListCards returns a user's cards
func (s *Service) ListCards(ctx context.Context, userID uuid.UUID) ([]*entities.Card, error) {
	return s.cards.ListByUser(ctx, userID)
}

// GetCard returns one card owned by the user
func (s *Service) GetCard(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error) {
	return s.cards.GetByID(ctx, cardID, userID)
}

// ListCardTransactions returns issuer-reported spends for a card
func (s *Service) ListCardTransactions(ctx context.Context, userID, cardID uuid.UUID) ([]*entities.CardTransaction, error) {
	card, err := s.cards.GetByID(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}

	resp, err := s.issuer.ListTransactions(ctx, card.IssuerCardID)
	if err != nil {
		return nil, fmt.Errorf("list card transactions: %w", err)
	}

	transactions := make([]*entities.CardTransaction, 0, len(resp.Data))
	for _, t := range resp.Data {
		transactions = append(transactions, &entities.CardTransaction{
			ID:           t.ID,
			CardID:       cardID,
			Amount:       t.Amount,
			Currency:     t.Currency,
			MerchantName: t.MerchantName,
			Status:       t.Status,
		})
	}
	return transactions, nil
}

// ListPreloadCards returns preloaded cards still in inventory
func (s *Service) ListPreloadCards(ctx context.Context) ([]*entities.PreloadCard, error) {
	return s.preloads.ListAvailable(ctx)
}

// PurchasePreloadCard sells a pre-funded card for an on-chain payment.
// Payments are native coin on the preload network only, with a small
// tolerance below the sticker price for gas-conscious senders. The
// purchase record and the inventory flip commit together.
func (s *Service) PurchasePreloadCard(ctx context.Context, userID uuid.UUID, email, txHash string) (*entities.PurchasePreloadCardResponse, error) {
	txHash = strings.ToLower(strings.TrimSpace(txHash))

	if _, err := s.credits.EnsureProfile(ctx, userID, email); err != nil {
		return nil, err
	}

	// The same wallet takes deposits, so a payment spent here must be
	// barred from later credit redemption and vice versa.
	used, err := s.usedHashes.IsUsed(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("check used hash: %w", err)
	}
	if used {
		return nil, domainerrors.ErrTransactionAlreadyUsed
	}

	preload, err := s.preloads.NextAvailable(ctx)
	if err != nil {
		return nil, err
	}

	price := decimal.NewFromInt(s.cfg.PreloadPriceUSD)
	minAmount := price.Mul(decimal.NewFromFloat(1 - s.cfg.PreloadTolerance))

	details, err := s.verifier.Verify(ctx, verification.Request{
		TxHash:            txHash,
		Network:           entities.Network(s.cfg.PreloadNetwork),
		ExpectedRecipient: s.cfg.DepositWallet,
		ExpectedAsset:     entities.AssetNative,
		MinAmountUSD:      minAmount,
	})
	if err != nil {
		return nil, err
	}

	err = s.runTx(ctx, func(tx *sql.Tx) error {
		if err := s.usedHashes.MarkUsedTx(ctx, tx, &entities.UsedTransactionHash{
			TxHash:    txHash,
			UserID:    userID,
			Network:   entities.Network(s.cfg.PreloadNetwork),
			AmountUSD: details.AmountUSD,
		}); err != nil {
			return err
		}
		if err := s.preloads.RecordPurchaseTx(ctx, tx, &entities.PreloadPurchase{
			UserID:        userID,
			PreloadCardID: preload.ID,
			TxHash:        txHash,
			AmountUSD:     details.AmountUSD,
		}); err != nil {
			return err
		}
		return s.preloads.MarkSoldTx(ctx, tx, preload.ID, userID)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrNoPreloadCards) {
			// Lost the inventory race after verification.
			return nil, domainerrors.ErrNoPreloadCards
		}
		return nil, err
	}

	s.logger.Info("Preload card sold",
		"user_id", userID.String(),
		"preload_card_id", preload.ID.String(),
		"tx_hash", txHash,
		"amount_usd", details.AmountUSD.String())

	preload.Status = entities.PreloadCardStatusSold
	preload.SoldToUserID = &userID
	return &entities.PurchasePreloadCardResponse{Success: true, Card: preload}, nil
}
