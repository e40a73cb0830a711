package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Network identifies a supported EVM chain
type Network string

const (
	NetworkEthereum Network = "ethereum"
	NetworkBase     Network = "base"
	NetworkBSC      Network = "bsc"
	NetworkPolygon  Network = "polygon"
)

// IsValid checks if the network is one we support
func (n Network) IsValid() bool {
	switch n {
	case NetworkEthereum, NetworkBase, NetworkBSC, NetworkPolygon:
		return true
	}
	return false
}

// Asset identifies what kind of transfer a deposit used
type Asset string

const (
	AssetUSDT   Asset = "usdt"
	AssetUSDC   Asset = "usdc"
	AssetNative Asset = "native"
	AssetAny    Asset = "any"
)

// TransferDetails is the decoded result of an on-chain payment,
// normalized to a USD value regardless of the asset used.
type TransferDetails struct {
	Recipient string          `json:"recipient"`
	Asset     Asset           `json:"asset"`
	Symbol    string          `json:"symbol"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	IsNative  bool            `json:"is_native"`
}

// VerifyPaymentRequest is the payload for verifying a credit deposit
type VerifyPaymentRequest struct {
	TxHash  string `json:"tx_hash" binding:"required,txhash"`
	Network string `json:"network" binding:"required,oneof=ethereum base bsc polygon"`
}

// VerifyPaymentResponse is returned after a deposit is reconciled
type VerifyPaymentResponse struct {
	Success      bool            `json:"success"`
	CreditsAdded int64           `json:"credits_added"`
	NewBalance   int64           `json:"new_balance"`
	AmountUSD    decimal.Decimal `json:"amount_usd"`
	TxHash       string          `json:"tx_hash"`
	Network      Network         `json:"network"`
	VerifiedAt   time.Time       `json:"verified_at"`
}

// VerifyCardTopUpRequest is the payload for verifying an on-chain card top-up
type VerifyCardTopUpRequest struct {
	CardID   string `json:"card_id" binding:"required,uuid"`
	TxHash   string `json:"tx_hash" binding:"required,txhash"`
	Network  string `json:"network" binding:"required,oneof=ethereum base bsc polygon"`
	Currency string `json:"currency" binding:"required,oneof=usdt usdc"`
}

// VerifyCardTopUpResponse is returned after a crypto card top-up settles
type VerifyCardTopUpResponse struct {
	Success   bool            `json:"success"`
	CardID    string          `json:"card_id"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	TxHash    string          `json:"tx_hash"`
}
