package pricefeed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
)

// Static returns the configured fallback price for a network. It sits
// last in the cascade so deposits keep working through feed outages.
type Static struct{}

// NewStatic creates the static fallback provider
func NewStatic() *Static { return &Static{} }

// Name identifies the source in logs and metrics
func (s *Static) Name() string { return "static" }

// Price returns the configured fallback price
func (s *Static) Price(_ context.Context, network *config.NetworkConfig) (decimal.Decimal, error) {
	if network.FallbackPrice <= 0 {
		return decimal.Zero, fmt.Errorf("no fallback price configured")
	}
	return decimal.NewFromFloat(network.FallbackPrice), nil
}
