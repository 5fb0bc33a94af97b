package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

const (
	connectTimeout = 5 * time.Second
	scanBatchSize  = 200
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStore is the shared cache tier. Entries are stored as JSON and
// expire in Redis when their stale window ends.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore creates a Redis tier on an existing client.
// The caller keeps ownership of the client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Get returns a usable entry for key
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// A corrupt entry is a miss; it will be overwritten on reload.
		return nil, false, nil
	}
	if !e.IsUsable(s.now()) {
		return nil, false, nil
	}
	return &e, true, nil
}

// Set stores an entry until its stale window ends
func (s *RedisStore) Set(ctx context.Context, key string, e *Entry) error {
	ttl := e.StaleUntil.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Delete removes one key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// DeletePrefix removes every key starting with prefix using SCAN
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan prefix %s: %w", prefix, err)
	}

	removed := 0
	for start := 0; start < len(keys); start += scanBatchSize {
		end := min(start+scanBatchSize, len(keys))
		n, err := s.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
		}
		removed += int(n)
	}
	return removed, nil
}

var _ Store = (*RedisStore)(nil)
