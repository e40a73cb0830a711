package explorer

import (
	"encoding/json"
	"fmt"
)

// envelope is the Etherscan v2 API response wrapper. Proxy-module calls
// return a JSON-RPC style payload; quota and key errors come back with
// status/message set instead.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
}

// Transaction is an on-chain transaction as returned by eth_getTransactionByHash
type Transaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Input       string `json:"input"`
	BlockNumber string `json:"blockNumber"`
}

// Receipt is a transaction receipt as returned by eth_getTransactionReceipt
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
	From            string `json:"from"`
	To              string `json:"to"`
	BlockNumber     string `json:"blockNumber"`
	Logs            []Log  `json:"logs"`
}

// Log is an event log entry within a receipt
type Log struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

// ErrorResponse represents an explorer API level error
type ErrorResponse struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("explorer API error: status %d, message: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true when the explorer throttled the request
func (e *ErrorResponse) IsRateLimited() bool {
	return e.StatusCode == 429
}
