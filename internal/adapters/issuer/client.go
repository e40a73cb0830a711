// Package issuer provides a client for the card issuing provider API.
package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dbank-service/dbank_service/pkg/logger"
	"github.com/dbank-service/dbank_service/pkg/metrics"
	"github.com/dbank-service/dbank_service/pkg/retry"
)

// Config represents issuer API configuration
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Client represents an issuer API client
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logger.Logger
}

// NewClient creates a new issuer API client
func NewClient(config Config, logger *logger.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "issuer-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Issuer circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// CreateCard issues a new virtual card
func (c *Client) CreateCard(ctx context.Context, req *CreateCardRequest) (*Card, error) {
	var card Card
	if err := c.doRequestWithRetry(ctx, http.MethodPost, "/v1/cards", req, &card); err != nil {
		return nil, fmt.Errorf("create card failed: %w", err)
	}
	return &card, nil
}

// GetCard retrieves a card by issuer ID
func (c *Client) GetCard(ctx context.Context, cardID string) (*Card, error) {
	var card Card
	if err := c.doRequestWithRetry(ctx, http.MethodGet, fmt.Sprintf("/v1/cards/%s", cardID), nil, &card); err != nil {
		return nil, fmt.Errorf("get card failed: %w", err)
	}
	return &card, nil
}

// TopUpCard funds a card with the given USD amount
func (c *Client) TopUpCard(ctx context.Context, cardID string, req *TopUpRequest) (*Card, error) {
	var card Card
	if err := c.doRequestWithRetry(ctx, http.MethodPost, fmt.Sprintf("/v1/cards/%s/topup", cardID), req, &card); err != nil {
		return nil, fmt.Errorf("top up card failed: %w", err)
	}
	return &card, nil
}

// FreezeCard freezes a card
func (c *Client) FreezeCard(ctx context.Context, cardID string) (*Card, error) {
	var card Card
	if err := c.doRequestWithRetry(ctx, http.MethodPost, fmt.Sprintf("/v1/cards/%s/freeze", cardID), nil, &card); err != nil {
		return nil, fmt.Errorf("freeze card failed: %w", err)
	}
	return &card, nil
}

// UnfreezeCard unfreezes a card
func (c *Client) UnfreezeCard(ctx context.Context, cardID string) (*Card, error) {
	var card Card
	if err := c.doRequestWithRetry(ctx, http.MethodPost, fmt.Sprintf("/v1/cards/%s/unfreeze", cardID), nil, &card); err != nil {
		return nil, fmt.Errorf("unfreeze card failed: %w", err)
	}
	return &card, nil
}

// ListTransactions lists spends on a card
func (c *Client) ListTransactions(ctx context.Context, cardID string) (*ListTransactionsResponse, error) {
	var resp ListTransactionsResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, fmt.Sprintf("/v1/cards/%s/transactions", cardID), nil, &resp); err != nil {
		return nil, fmt.Errorf("list transactions failed: %w", err)
	}
	return &resp, nil
}

// doRequest performs a single issuer API call
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	fullURL := c.config.BaseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.config.APIKey)

	c.logger.Debug("Sending issuer API request", "method", method, "url", fullURL)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return &rawResponse{statusCode: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: respBody}, nil
	})
	if err != nil {
		metrics.IssuerRequestErrors.WithLabelValues("transport").Inc()
		return err
	}

	raw := result.(*rawResponse)

	// Upstream proxies serve HTML error pages when the issuer is down.
	if strings.Contains(raw.contentType, "text/html") || bytes.HasPrefix(bytes.TrimSpace(raw.body), []byte("<")) {
		metrics.IssuerRequestErrors.WithLabelValues("html_page").Inc()
		return &ErrorResponse{StatusCode: http.StatusBadGateway, Code: "UPSTREAM_ERROR", Message: "issuer returned an error page"}
	}

	if raw.statusCode >= 400 {
		metrics.IssuerRequestErrors.WithLabelValues("api").Inc()
		var errResp ErrorResponse
		if err := json.Unmarshal(raw.body, &errResp); err == nil && errResp.Message != "" {
			errResp.StatusCode = raw.statusCode
			return &errResp
		}
		return &ErrorResponse{StatusCode: raw.statusCode, Message: string(raw.body)}
	}

	if response != nil && len(raw.body) > 0 {
		if err := json.Unmarshal(raw.body, response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

type rawResponse struct {
	statusCode  int
	contentType string
	body        []byte
}

// doRequestWithRetry performs an issuer API call with retry on
// transient failures. Writes are retried because issuer operations
// are idempotent per card.
func (c *Client) doRequestWithRetry(ctx context.Context, method, endpoint string, body, response interface{}) error {
	retryConfig := retry.RetryConfig{
		MaxAttempts: c.config.MaxRetries,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}

	retryableFunc := func() error {
		return c.doRequest(ctx, method, endpoint, body, response)
	}

	isRetryable := func(err error) bool {
		if err == nil {
			return false
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false
		}
		var apiErr *ErrorResponse
		if errors.As(err, &apiErr) {
			return apiErr.IsRetryable()
		}
		errStr := err.Error()
		return strings.Contains(errStr, "connection refused") ||
			strings.Contains(errStr, "timeout")
	}

	return retry.WithExponentialBackoff(ctx, retryConfig, retryableFunc, isRetryable)
}
