package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
)

// CoinCap is the first fallback price source
type CoinCap struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinCap creates a CoinCap price provider
func NewCoinCap(baseURL string, timeout time.Duration) *CoinCap {
	if baseURL == "" {
		baseURL = "https://api.coincap.io/v2"
	}
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	return &CoinCap{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the source in logs and metrics
func (c *CoinCap) Name() string { return "coincap" }

// Price resolves the native token price via the assets endpoint
func (c *CoinCap) Price(ctx context.Context, network *config.NetworkConfig) (decimal.Decimal, error) {
	if network.CoinCapID == "" {
		return decimal.Zero, fmt.Errorf("no coincap id configured")
	}

	fullURL := fmt.Sprintf("%s/assets/%s", c.baseURL, network.CoinCapID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read response: %w", err)
	}

	var payload struct {
		Data struct {
			PriceUSD string `json:"priceUsd"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	price, err := decimal.NewFromString(payload.Data.PriceUSD)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", payload.Data.PriceUSD, err)
	}
	return price, nil
}
