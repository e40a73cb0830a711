package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType categorizes credit ledger entries
type TransactionType string

const (
	TransactionTypeDeposit         TransactionType = "deposit"
	TransactionTypeSpend           TransactionType = "spend"
	TransactionTypeRefund          TransactionType = "refund"
	TransactionTypeCardCreation    TransactionType = "card_creation"
	TransactionTypeCardTopUp       TransactionType = "card_topup"
	TransactionTypePreloadPurchase TransactionType = "preload_purchase"
)

// IsValid checks if the transaction type is known
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeSpend, TransactionTypeRefund,
		TransactionTypeCardCreation, TransactionTypeCardTopUp, TransactionTypePreloadPurchase:
		return true
	}
	return false
}

// IsCredit returns true for entry types that increase the balance
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeRefund
}

// Profile is a user's account record holding their credit balance.
// Credits are whole units, never fractional.
type Profile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Email     string    `json:"email" db:"email"`
	Credits   int64     `json:"credits" db:"credits"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreditTransaction is an append-only ledger entry. Amount is signed:
// positive for credits in, negative for credits out.
type CreditTransaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	Type        TransactionType `json:"type" db:"type"`
	Amount      int64           `json:"amount" db:"amount"`
	Description string          `json:"description" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// UsedTransactionHash records a redeemed on-chain hash so a deposit
// can never be credited twice.
type UsedTransactionHash struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	TxHash    string          `json:"tx_hash" db:"tx_hash"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Network   Network         `json:"network" db:"network"`
	AmountUSD decimal.Decimal `json:"amount_usd" db:"amount_usd"`
	Credits   int64           `json:"credits" db:"credits"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// CreditBalanceResponse is the balance view returned to clients
type CreditBalanceResponse struct {
	Credits int64                `json:"credits"`
	History []*CreditTransaction `json:"history,omitempty"`
}
