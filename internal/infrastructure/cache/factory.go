package cache

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

// ErrRedisDisabled is returned when a Redis-backed component is requested
// while redis.enabled is false
var ErrRedisDisabled = errors.New("redis is disabled")

// IdempotencyStoreFactory creates idempotency stores based on configuration
type IdempotencyStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStore creates a Redis-based idempotency store
func (f *IdempotencyStoreFactory) CreateRedisStore() (shared.IdempotencyStore, error) {
	if !f.redisConfig.Enabled {
		return nil, ErrRedisDisabled
	}
	store, err := NewRedisIdempotencyStore(f.redisConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis idempotency store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory idempotency store.
// In-memory stores do not share state across instances, so a webhook
// retried against another instance can be processed twice.
func (f *IdempotencyStoreFactory) CreateInMemoryStore() shared.IdempotencyStore {
	return NewInMemoryIdempotencyStore()
}

// CreateStore tries Redis first and falls back to memory when allowed
func (f *IdempotencyStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("Using Redis idempotency store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"Duplicate webhook processing is possible across instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}

// NewTieredCacheFromConfig builds the tiered cache. A nil client leaves the
// cache memory-only.
func NewTieredCacheFromConfig(cfg config.CacheConfig, client *redis.Client, logger *zap.Logger) *TieredCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	memory := NewMemoryStore(
		WithMaxKeys(cfg.MemoryMaxKeys),
		WithCleanupInterval(cfg.CleanupInterval),
		WithMemoryLogger(logger),
	)

	opts := []TieredCacheOption{WithTieredLogger(logger), WithDefaultTTL(cfg.MemoryTTL)}
	if client != nil {
		opts = append(opts, WithSharedStore(NewRedisStore(client)))
	}
	return NewTieredCache(memory, opts...)
}
