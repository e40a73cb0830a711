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

// Binance is the second fallback price source
type Binance struct {
	baseURL    string
	httpClient *http.Client
}

// NewBinance creates a Binance price provider
func NewBinance(baseURL string, timeout time.Duration) *Binance {
	if baseURL == "" {
		baseURL = "https://api.binance.com/api/v3"
	}
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	return &Binance{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the source in logs and metrics
func (b *Binance) Name() string { return "binance" }

// Price resolves the native token price via the ticker endpoint
func (b *Binance) Price(ctx context.Context, network *config.NetworkConfig) (decimal.Decimal, error) {
	if network.BinanceSymbol == "" {
		return decimal.Zero, fmt.Errorf("no binance symbol configured")
	}

	params := url.Values{}
	params.Set("symbol", network.BinanceSymbol)
	fullURL := b.baseURL + "/ticker/price?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
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
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	price, err := decimal.NewFromString(payload.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", payload.Price, err)
	}
	return price, nil
}
