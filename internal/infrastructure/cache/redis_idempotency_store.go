package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

// DefaultIdempotencyPrefix namespaces processed Stripe event IDs
const DefaultIdempotencyPrefix = "kct:webhook:processed:"

// RedisIdempotencyStore implements IdempotencyStore using Redis so that
// every instance sees the same processed events
type RedisIdempotencyStore struct {
	client     *redis.Client
	ownsClient bool
	keyPrefix  string
}

// NewRedisIdempotencyStore connects to Redis and creates a store that owns the client
func NewRedisIdempotencyStore(cfg config.RedisConfig) (*RedisIdempotencyStore, error) {
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return &RedisIdempotencyStore{
		client:     client,
		ownsClient: true,
		keyPrefix:  DefaultIdempotencyPrefix,
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis client.
// The caller keeps ownership of the client.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultIdempotencyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed atomically marks key with SETNX.
// Returns true if the key was newly marked.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return ok, nil
}

// IsProcessed checks if key has already been processed
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if event is processed: %w", err)
	}
	return exists > 0, nil
}

// Forget removes key so a failed event can be delivered again
func (s *RedisIdempotencyStore) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to forget event: %w", err)
	}
	return nil
}

// Close closes the Redis client if the store owns it
func (s *RedisIdempotencyStore) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client
func (s *RedisIdempotencyStore) Client() *redis.Client {
	return s.client
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
