// Package explorer provides a client for the Etherscan v2 unified API,
// used to look up transactions and receipts across all supported chains.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dbank-service/dbank_service/pkg/logger"
	"github.com/dbank-service/dbank_service/pkg/retry"
)

// ErrTxNotFound indicates the hash does not exist on the queried chain
var ErrTxNotFound = errors.New("transaction not found")

// Config represents explorer API configuration
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Client represents an Etherscan v2 API client. A single key and base
// URL serve every chain; the chain is selected per request.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new explorer client
func NewClient(config Config, logger *logger.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.etherscan.io/v2/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 12 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// GetTransactionByHash fetches a transaction on the given chain.
// Returns ErrTxNotFound if the hash is unknown to the chain.
func (c *Client) GetTransactionByHash(ctx context.Context, chainID int64, txHash string) (*Transaction, error) {
	var tx Transaction
	if err := c.proxyCallWithRetry(ctx, chainID, "eth_getTransactionByHash", txHash, &tx); err != nil {
		return nil, fmt.Errorf("get transaction %s failed: %w", txHash, err)
	}
	return &tx, nil
}

// GetTransactionReceipt fetches a transaction receipt on the given chain.
// Returns ErrTxNotFound if the transaction is unknown or not yet mined.
func (c *Client) GetTransactionReceipt(ctx context.Context, chainID int64, txHash string) (*Receipt, error) {
	var receipt Receipt
	if err := c.proxyCallWithRetry(ctx, chainID, "eth_getTransactionReceipt", txHash, &receipt); err != nil {
		return nil, fmt.Errorf("get receipt %s failed: %w", txHash, err)
	}
	return &receipt, nil
}

// proxyCall performs a single proxy-module request against the explorer
func (c *Client) proxyCall(ctx context.Context, chainID int64, action, txHash string, result interface{}) error {
	params := url.Values{}
	params.Set("chainid", strconv.FormatInt(chainID, 10))
	params.Set("module", "proxy")
	params.Set("action", action)
	params.Set("txhash", txHash)
	params.Set("apikey", c.config.APIKey)

	fullURL := c.config.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Sending explorer request", "action", action, "chain_id", chainID, "tx_hash", txHash)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &ErrorResponse{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to unmarshal explorer response: %w", err)
	}

	// Quota and key errors arrive with a 200 status code and a
	// status/message envelope instead of a JSON-RPC result.
	if env.Status == "0" || env.Message == "NOTOK" {
		msg := strings.Trim(string(env.Result), `"`)
		if strings.Contains(strings.ToLower(msg), "rate limit") {
			return &ErrorResponse{StatusCode: 429, Message: msg}
		}
		return ErrTxNotFound
	}

	if len(env.Result) == 0 || string(env.Result) == "null" {
		return ErrTxNotFound
	}

	if err := json.Unmarshal(env.Result, result); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

// proxyCallWithRetry retries transient explorer failures with backoff
func (c *Client) proxyCallWithRetry(ctx context.Context, chainID int64, action, txHash string, result interface{}) error {
	retryConfig := retry.RetryConfig{
		MaxAttempts: c.config.MaxRetries,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}

	retryableFunc := func() error {
		return c.proxyCall(ctx, chainID, action, txHash, result)
	}

	isRetryable := func(err error) bool {
		if err == nil || errors.Is(err, ErrTxNotFound) {
			return false
		}
		var apiErr *ErrorResponse
		if errors.As(err, &apiErr) {
			return apiErr.StatusCode >= 500 || apiErr.IsRateLimited()
		}
		errStr := err.Error()
		return strings.Contains(errStr, "connection refused") ||
			strings.Contains(errStr, "timeout")
	}

	return retry.WithExponentialBackoff(ctx, retryConfig, retryableFunc, isRetryable)
}
