package errors

import "errors"

// Payment verification errors. The messages are surfaced to the client
// verbatim, so they stay human readable rather than machine coded.
var (
	// ErrTransactionNotFound indicates the transaction hash does not exist on the chain
	ErrTransactionNotFound = errors.New("Transaction not found on blockchain")

	// ErrTransactionFailed indicates the transaction was mined but reverted
	ErrTransactionFailed = errors.New("Transaction failed on blockchain")

	// ErrTransactionAlreadyUsed indicates the hash was already redeemed for credits
	ErrTransactionAlreadyUsed = errors.New("This transaction has already been used")

	// ErrRecipientMismatch indicates the funds did not go to our deposit wallet
	ErrRecipientMismatch = errors.New("Transaction recipient does not match your wallet address")

	// ErrNoTransferFound indicates no supported token or native transfer was present
	ErrNoTransferFound = errors.New("No USDT/USDC or native token transfer found in this transaction")

	// ErrPriceUnavailable indicates every price source failed for a native transfer
	ErrPriceUnavailable = errors.New("Unable to fetch token price. Please try again or use USDT/USDC")
)

// Credit ledger errors
var (
	// ErrInsufficientCredits indicates the user's balance cannot cover the spend
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrProfileNotFound indicates no profile row exists for the user
	ErrProfileNotFound = errors.New("profile not found")
)

// Card errors
var (
	// ErrCardNotFound indicates the card does not exist or belongs to another user
	ErrCardNotFound = errors.New("card not found")

	// ErrCardNotActive indicates an operation requires an active card
	ErrCardNotActive = errors.New("card is not active")

	// ErrNoPreloadCards indicates the preload inventory is empty
	ErrNoPreloadCards = errors.New("no preloaded cards available")
)
