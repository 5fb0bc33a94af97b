package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// exerciseIdempotencyStore runs the shared contract against any store
func exerciseIdempotencyStore(t *testing.T, store shared.IdempotencyStore) {
	ctx := context.Background()

	isNew, err := store.MarkProcessed(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "first delivery is new")

	isNew, err = store.MarkProcessed(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew, "replay is rejected")

	processed, err := store.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = store.IsProcessed(ctx, "evt_unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, store.Forget(ctx, "evt_1"))
	isNew, err = store.MarkProcessed(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "forgotten event can be processed again")
}

func TestInMemoryIdempotencyStore_Contract(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	exerciseIdempotencyStore(t, store)
}

func TestRedisIdempotencyStore_Contract(t *testing.T) {
	_, client := newMiniredisClient(t)
	store := NewRedisIdempotencyStoreWithClient(client, "")
	defer store.Close()

	exerciseIdempotencyStore(t, store)
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	clock := newFakeClock()
	store.now = clock.Now
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "evt_short", time.Minute)
	require.NoError(t, err)
	_, err = store.MarkProcessed(ctx, "evt_long", time.Hour)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	processed, err := store.IsProcessed(ctx, "evt_short")
	require.NoError(t, err)
	assert.False(t, processed, "expired key is not processed")

	store.cleanup()
	assert.Equal(t, 1, store.Size())

	isNew, err := store.MarkProcessed(ctx, "evt_short", time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestRedisIdempotencyStore_Expiry(t *testing.T) {
	mr, client := newMiniredisClient(t)
	store := NewRedisIdempotencyStoreWithClient(client, "test:")
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "evt_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:evt_1"))
	assert.Equal(t, time.Minute, mr.TTL("test:evt_1"))

	mr.FastForward(2 * time.Minute)

	isNew, err := store.MarkProcessed(ctx, "evt_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestRedisIdempotencyStore_ConnectionError(t *testing.T) {
	mr, client := newMiniredisClient(t)
	store := NewRedisIdempotencyStoreWithClient(client, "")
	mr.Close()

	_, err := store.MarkProcessed(context.Background(), "evt_1", time.Minute)
	assert.Error(t, err)
}

func TestInMemoryIdempotencyStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	const workers = 100

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		newCount int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(ctx, "evt_concurrent", time.Hour)
			if err == nil && isNew {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, newCount, "exactly one delivery wins")
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "second close is a no-op")
}

func TestIdempotencyStoreFactory(t *testing.T) {
	t.Run("disabled redis falls back to memory", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false})
		store, err := f.CreateStore()
		require.NoError(t, err)
		defer store.Close()

		_, ok := store.(*InMemoryIdempotencyStore)
		assert.True(t, ok)
	})

	t.Run("fallback can be refused", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false}, WithInMemoryFallback(false))
		_, err := f.CreateStore()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRedisDisabled)
	})

	t.Run("enabled redis is used", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port := splitAddr(t, mr.Addr())

		f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: true, Host: host, Port: port})
		store, err := f.CreateStore()
		require.NoError(t, err)
		defer store.Close()

		_, ok := store.(*RedisIdempotencyStore)
		assert.True(t, ok)
	})
}
