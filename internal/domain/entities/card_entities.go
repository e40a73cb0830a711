package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardStatus represents the status of a card
type CardStatus string

const (
	CardStatusPending   CardStatus = "pending"
	CardStatusActive    CardStatus = "active"
	CardStatusFrozen    CardStatus = "frozen"
	CardStatusCancelled CardStatus = "cancelled"
)

// Card represents a user's virtual prepaid card backed by the issuer
type Card struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       uuid.UUID       `json:"user_id" db:"user_id"`
	IssuerCardID string          `json:"issuer_card_id" db:"issuer_card_id"`
	Status       CardStatus      `json:"status" db:"status"`
	Last4        string          `json:"last_4" db:"last_4"`
	Expiry       string          `json:"expiry" db:"expiry"`
	Balance      decimal.Decimal `json:"balance" db:"balance"`
	Currency     string          `json:"currency" db:"currency"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// CardTransaction represents a spend on a card as reported by the issuer
type CardTransaction struct {
	ID           string          `json:"id"`
	CardID       uuid.UUID       `json:"card_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	MerchantName string          `json:"merchant_name,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CardTopUpStatus tracks the lifecycle of an on-chain card top-up
type CardTopUpStatus string

const (
	CardTopUpStatusPending   CardTopUpStatus = "pending"
	CardTopUpStatusCompleted CardTopUpStatus = "completed"
	CardTopUpStatusFailed    CardTopUpStatus = "failed"
)

// CardTopUpRecord tracks a crypto-funded card top-up keyed by its
// transaction hash. The unique hash guards against double funding.
type CardTopUpRecord struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	CardID    uuid.UUID       `json:"card_id" db:"card_id"`
	TxHash    string          `json:"tx_hash" db:"tx_hash"`
	Network   Network         `json:"network" db:"network"`
	AmountUSD decimal.Decimal `json:"amount_usd" db:"amount_usd"`
	Status    CardTopUpStatus `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// PreloadCardStatus tracks preload inventory availability
type PreloadCardStatus string

const (
	PreloadCardStatusAvailable PreloadCardStatus = "available"
	PreloadCardStatusSold      PreloadCardStatus = "sold"
)

// PreloadCard is a pre-funded card held in inventory for instant purchase
type PreloadCard struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	IssuerCardID string            `json:"issuer_card_id" db:"issuer_card_id"`
	Last4        string            `json:"last_4" db:"last_4"`
	Expiry       string            `json:"expiry" db:"expiry"`
	BalanceUSD   decimal.Decimal   `json:"balance_usd" db:"balance_usd"`
	PriceUSD     decimal.Decimal   `json:"price_usd" db:"price_usd"`
	Status       PreloadCardStatus `json:"status" db:"status"`
	SoldToUserID *uuid.UUID        `json:"sold_to_user_id,omitempty" db:"sold_to_user_id"`
	SoldAt       *time.Time        `json:"sold_at,omitempty" db:"sold_at"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}

// PreloadPurchase records a completed preload card sale keyed by its
// payment transaction hash.
type PreloadPurchase struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	PreloadCardID uuid.UUID       `json:"preload_card_id" db:"preload_card_id"`
	TxHash        string          `json:"tx_hash" db:"tx_hash"`
	AmountUSD     decimal.Decimal `json:"amount_usd" db:"amount_usd"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// CreateCardRequest is the payload for issuing a new card
type CreateCardRequest struct {
	Nickname string `json:"nickname,omitempty" binding:"omitempty,max=64"`
}

// CreateCardResponse is returned after a card is issued
type CreateCardResponse struct {
	Card       *Card `json:"card"`
	NewBalance int64 `json:"new_balance"`
}

// TopUpCardRequest is the payload for a credit-funded card top-up
type TopUpCardRequest struct {
	AmountUSD int64 `json:"amount_usd" binding:"required,min=15"`
}

// TopUpCardResponse is returned after a credit-funded top-up
type TopUpCardResponse struct {
	Card         *Card `json:"card"`
	CreditsSpent int64 `json:"credits_spent"`
	NewBalance   int64 `json:"new_balance"`
}

// PurchasePreloadCardRequest is the payload for buying a preloaded card
type PurchasePreloadCardRequest struct {
	TxHash string `json:"tx_hash" binding:"required,txhash"`
}

// PurchasePreloadCardResponse is returned after a preload sale completes
type PurchasePreloadCardResponse struct {
	Success bool         `json:"success"`
	Card    *PreloadCard `json:"card"`
}
