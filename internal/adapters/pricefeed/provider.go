// Package pricefeed resolves USD prices for native chain tokens.
// Sources are tried in order until one answers; a static fallback
// price keeps deposits flowing when every feed is down.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dbank-service/dbank_service/internal/infrastructure/cache"
	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
	"github.com/dbank-service/dbank_service/pkg/logger"
	"github.com/dbank-service/dbank_service/pkg/metrics"
)

// ErrNoPrice indicates every configured source failed to produce a price
var ErrNoPrice = errors.New("no price available from any source")

// Provider resolves the USD price of a network's native token
type Provider interface {
	Name() string
	Price(ctx context.Context, network *config.NetworkConfig) (decimal.Decimal, error)
}

// Oracle tries each provider in order and caches successful answers
type Oracle struct {
	providers []Provider
	cache     cache.RedisClient
	cacheTTL  time.Duration
	logger    *logger.Logger
}

// NewOracle creates a price oracle over the given providers. The cache
// may be nil when Redis is disabled.
func NewOracle(providers []Provider, redisCache cache.RedisClient, cacheTTL time.Duration, logger *logger.Logger) *Oracle {
	if cacheTTL == 0 {
		cacheTTL = 60 * time.Second
	}
	return &Oracle{
		providers: providers,
		cache:     redisCache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// NativePrice resolves the USD price of the native token for a network
func (o *Oracle) NativePrice(ctx context.Context, networkName string, network *config.NetworkConfig) (decimal.Decimal, error) {
	cacheKey := fmt.Sprintf("price:native:%s", networkName)

	if o.cache != nil {
		var cached string
		if err := o.cache.Get(ctx, cacheKey, &cached); err == nil {
			if price, err := decimal.NewFromString(cached); err == nil && price.IsPositive() {
				return price, nil
			}
		}
	}

	for i, p := range o.providers {
		price, err := p.Price(ctx, network)
		if err != nil {
			o.logger.Warn("Price source failed", "source", p.Name(), "network", networkName, "error", err)
			continue
		}
		if !price.IsPositive() {
			o.logger.Warn("Price source returned non-positive price", "source", p.Name(), "network", networkName)
			continue
		}

		// Counts only answers served by a backup source.
		if i > 0 {
			metrics.PriceFeedFallbacks.WithLabelValues(p.Name()).Inc()
		}

		if o.cache != nil {
			if err := o.cache.Set(ctx, cacheKey, price.String(), o.cacheTTL); err != nil {
				o.logger.Warn("Failed to cache price", "network", networkName, "error", err)
			}
		}
		return price, nil
	}

	return decimal.Zero, ErrNoPrice
}
