package issuer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Card is a card record as returned by the issuer API
type Card struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Last4    string          `json:"last4"`
	Expiry   string          `json:"expiry"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
	Pan      string          `json:"pan,omitempty"`
	CVV      string          `json:"cvv,omitempty"`
}

// CreateCardRequest is the payload for issuing a new card
type CreateCardRequest struct {
	Nickname string `json:"nickname,omitempty"`
	Currency string `json:"currency"`
}

// TopUpRequest is the payload for funding a card
type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Transaction is a card spend record as returned by the issuer API
type Transaction struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	MerchantName string          `json:"merchant_name"`
	Status       string          `json:"status"`
	CreatedAt    string          `json:"created_at"`
}

// ListTransactionsResponse wraps the issuer's transaction listing
type ListTransactionsResponse struct {
	Data    []Transaction `json:"data"`
	HasMore bool          `json:"has_more"`
}

// ErrorResponse represents an issuer API error
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Error implements the error interface
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("issuer API error: status %d, code: %s, message: %s", e.StatusCode, e.Code, e.Message)
}

// IsRetryable returns true for server side issuer failures
func (e *ErrorResponse) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
