// Package cache wraps Redis behind a small JSON-valued interface. The
// service runs fine without it; callers treat a nil client as no cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
)

// ErrCacheMiss indicates the key is not present
var ErrCacheMiss = errors.New("cache miss")

// RedisClient defines the cache operations the service uses
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

type redisClient struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisClient connects to Redis and verifies reachability before
// returning. Callers decide whether a connection failure is fatal.
func NewRedisClient(cfg *config.RedisConfig, logger *zap.Logger) (RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	logger.Info("Connected to Redis", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))

	return &redisClient{client: rdb, logger: logger}, nil
}

// Set stores value as JSON under key with the given TTL
func (r *redisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %q: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Get loads the JSON value stored under key into dest
func (r *redisClient) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	if err != nil {
		return fmt.Errorf("get %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode cached value for %q: %w", key, err)
	}
	return nil
}

// Del removes a key
func (r *redisClient) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Ping checks connectivity
func (r *redisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying connection
func (r *redisClient) Close() error {
	return r.client.Close()
}
