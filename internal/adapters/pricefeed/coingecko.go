package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
)

// CoinGecko is the primary price source
type CoinGecko struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinGecko creates a CoinGecko price provider
func NewCoinGecko(baseURL string, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	return &CoinGecko{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the source in logs and metrics
func (c *CoinGecko) Name() string { return "coingecko" }

// Price resolves the native token price via the simple/price endpoint
func (c *CoinGecko) Price(ctx context.Context, network *config.NetworkConfig) (decimal.Decimal, error) {
	if network.CoinGeckoID == "" {
		return decimal.Zero, fmt.Errorf("no coingecko id configured")
	}

	params := url.Values{}
	params.Set("ids", network.CoinGeckoID)
	params.Set("vs_currencies", "usd")
	fullURL := c.baseURL + "/simple/price?" + params.Encode()

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

	var payload map[string]struct {
		USD decimal.Decimal `json:"usd"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	entry, ok := payload[network.CoinGeckoID]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price entry for %s", network.CoinGeckoID)
	}
	return entry.USD, nil
}
