// Package di assembles the service graph from configuration.
package di

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dbank-service/dbank_service/internal/adapters/explorer"
	"github.com/dbank-service/dbank_service/internal/adapters/issuer"
	"github.com/dbank-service/dbank_service/internal/adapters/pricefeed"
	cardservice "github.com/dbank-service/dbank_service/internal/domain/services/card"
	ledgerservice "github.com/dbank-service/dbank_service/internal/domain/services/ledger"
	"github.com/dbank-service/dbank_service/internal/domain/services/verification"
	"github.com/dbank-service/dbank_service/internal/infrastructure/cache"
	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
	"github.com/dbank-service/dbank_service/internal/infrastructure/repositories"
	"github.com/dbank-service/dbank_service/pkg/logger"
)

// Container holds every constructed dependency
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	DB    *sql.DB
	SQLX  *sqlx.DB
	Redis cache.RedisClient

	ExplorerClient *explorer.Client
	PriceOracle    *pricefeed.Oracle
	IssuerClient   *issuer.Client

	ProfileRepo  *repositories.ProfileRepository
	LedgerRepo   *repositories.CreditLedgerRepository
	UsedHashRepo *repositories.UsedHashRepository
	CardRepo     *repositories.CardRepository
	TopUpRepo    *repositories.CardTopUpRepository
	PreloadRepo  *repositories.PreloadRepository

	VerificationEngine *verification.Engine
	LedgerService      *ledgerservice.Service
	CardService        *cardservice.Service
}

// NewContainer wires the full dependency graph
func NewContainer(cfg *config.Config, db *sql.DB, log *logger.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: log,
		DB:     db,
		SQLX:   sqlx.NewDb(db, "postgres"),
	}

	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cfg.Redis, log.Zap())
		if err != nil {
			// Redis only fronts the price cache, so start without it.
			log.Warn("Redis unavailable, price caching disabled", "error", err)
		} else {
			c.Redis = redisClient
		}
	}

	c.ExplorerClient = explorer.NewClient(explorer.Config{
		BaseURL: cfg.Explorer.BaseURL,
		APIKey:  cfg.Explorer.APIKey,
		Timeout: time.Duration(cfg.Explorer.Timeout) * time.Second,
	}, log)

	feedTimeout := time.Duration(cfg.PriceFeeds.Timeout) * time.Second
	c.PriceOracle = pricefeed.NewOracle(
		[]pricefeed.Provider{
			pricefeed.NewCoinGecko(cfg.PriceFeeds.CoinGeckoURL, feedTimeout),
			pricefeed.NewCoinCap(cfg.PriceFeeds.CoinCapURL, feedTimeout),
			pricefeed.NewBinance(cfg.PriceFeeds.BinanceURL, feedTimeout),
			pricefeed.NewStatic(),
		},
		c.Redis,
		time.Duration(cfg.PriceFeeds.CacheTTL)*time.Second,
		log,
	)

	c.IssuerClient = issuer.NewClient(issuer.Config{
		BaseURL:    cfg.Issuer.BaseURL,
		APIKey:     cfg.Issuer.APIKey,
		Timeout:    time.Duration(cfg.Issuer.Timeout) * time.Second,
		MaxRetries: cfg.Issuer.MaxRetries,
	}, log)

	c.ProfileRepo = repositories.NewProfileRepository(db, log.Zap())
	c.LedgerRepo = repositories.NewCreditLedgerRepository(db, log.Zap())
	c.UsedHashRepo = repositories.NewUsedHashRepository(db, log.Zap())
	c.CardRepo = repositories.NewCardRepository(c.SQLX)
	c.TopUpRepo = repositories.NewCardTopUpRepository(c.SQLX)
	c.PreloadRepo = repositories.NewPreloadRepository(c.SQLX)

	c.VerificationEngine = verification.NewEngine(
		c.ExplorerClient,
		c.PriceOracle,
		cfg.Blockchain.Networks,
		log,
	)

	c.LedgerService = ledgerservice.NewService(
		db,
		c.VerificationEngine,
		c.ProfileRepo,
		c.LedgerRepo,
		c.UsedHashRepo,
		cfg.Credits,
		log,
	)

	c.CardService = cardservice.NewService(
		db,
		c.IssuerClient,
		c.CardRepo,
		c.TopUpRepo,
		c.PreloadRepo,
		c.UsedHashRepo,
		c.LedgerService,
		c.VerificationEngine,
		cfg.Credits,
		log,
	)

	return c, nil
}

// Close releases held resources
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close Redis connection", "error", err)
		}
	}
}
