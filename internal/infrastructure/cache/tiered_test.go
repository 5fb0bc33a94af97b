package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingLoader struct {
	calls atomic.Int32
	value atomic.Value
}

func newCountingLoader(initial string) *countingLoader {
	l := &countingLoader{}
	l.value.Store(initial)
	return l
}

func (l *countingLoader) load(context.Context) (string, error) {
	l.calls.Add(1)
	return l.value.Load().(string), nil
}

func newTestTiered(clock *fakeClock, opts ...TieredCacheOption) *TieredCache {
	memory := NewMemoryStore(withMemoryClock(clock.Now))
	return NewTieredCache(memory, append([]TieredCacheOption{withTieredClock(clock.Now)}, opts...)...)
}

func TestTieredCache_MissThenFreshHit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := newFakeClock()
	c := newTestTiered(clock)
	defer c.Close()
	ctx := context.Background()
	loader := newCountingLoader("v1")
	key := Key(TypeProducts, "p1")

	got, err := GetOrLoad(ctx, c, TypeProducts, key, loader.load)
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	clock.Advance(14 * time.Minute)
	got, err = GetOrLoad(ctx, c, TypeProducts, key, loader.load)
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	assert.Equal(t, int32(1), loader.calls.Load())
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.MemoryHits)
}

func TestTieredCache_StaleWhileRevalidate(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := newFakeClock()
	c := newTestTiered(clock)
	defer c.Close()
	ctx := context.Background()
	loader := newCountingLoader("v1")
	key := Key(TypeProducts, "p1")

	_, err := GetOrLoad(ctx, c, TypeProducts, key, loader.load)
	require.NoError(t, err)

	// Past the 15m TTL but inside the 5m stale window
	clock.Advance(16 * time.Minute)
	loader.value.Store("v2")

	got, err := GetOrLoad(ctx, c, TypeProducts, key, loader.load)
	require.NoError(t, err)
	assert.Equal(t, "v1", got, "stale value is served immediately")

	require.Eventually(t, func() bool { return loader.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		got, err := GetOrLoad(ctx, c, TypeProducts, key, loader.load)
		return err == nil && got == "v2"
	}, time.Second, 5*time.Millisecond)

	assert.GreaterOrEqual(t, c.Stats().StaleHits, int64(1))
}

func TestTieredCache_ExpiredBeyondStaleWindowLoadsSynchronously(t *testing.T) {
	clock := newFakeClock()
	c := newTestTiered(clock)
	defer c.Close()
	ctx := context.Background()
	loader := newCountingLoader("v1")
	key := Key(TypeOrders, "o1")

	_, err := GetOrLoad(ctx, c, TypeOrders, key, loader.load)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	loader.value.Store("v2")

	got, err := GetOrLoad(ctx, c, TypeOrders, key, loader.load)
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestTieredCache_ConcurrentMissesLoadOnce(t *testing.T) {
	c := newTestTiered(newFakeClock())
	defer c.Close()

	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := GetOrLoad(context.Background(), c, TypeCategories, Key(TypeCategories, "all"), loader)
			if err == nil {
				results[i] = v
			}
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestTieredCache_LoaderErrorIsNotCached(t *testing.T) {
	c := newTestTiered(newFakeClock())
	defer c.Close()
	ctx := context.Background()
	key := Key(TypeUsers, "u1")

	_, err := GetOrLoad(ctx, c, TypeUsers, key, func(context.Context) (string, error) {
		return "", errors.New("db down")
	})
	require.Error(t, err)

	got, err := GetOrLoad(ctx, c, TypeUsers, key, func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestTieredCache_UnknownTypeUsesDefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestTiered(clock, WithDefaultTTL(time.Minute))
	defer c.Close()
	ctx := context.Background()
	loader := newCountingLoader("v")

	_, err := GetOrLoad(ctx, c, Type("misc"), "kct:misc:x", loader.load)
	require.NoError(t, err)
	clock.Advance(61 * time.Second)
	_, err = GetOrLoad(ctx, c, Type("misc"), "kct:misc:x", loader.load)
	require.NoError(t, err)

	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestTieredCache_SharedTier(t *testing.T) {
	_, client := newMiniredisClient(t)
	ctx := context.Background()
	key := Key(TypeProducts, "shared")

	first := NewTieredCache(NewMemoryStore(), WithSharedStore(NewRedisStore(client)))
	defer first.Close()
	second := NewTieredCache(NewMemoryStore(), WithSharedStore(NewRedisStore(client)))
	defer second.Close()

	loader := newCountingLoader("from-db")
	_, err := GetOrLoad(ctx, first, TypeProducts, key, loader.load)
	require.NoError(t, err)

	got, err := GetOrLoad(ctx, second, TypeProducts, key, loader.load)
	require.NoError(t, err)
	assert.Equal(t, "from-db", got)
	assert.Equal(t, int32(1), loader.calls.Load(), "second instance reads the shared tier")
	assert.Equal(t, int64(1), second.Stats().SharedHits)

	n, err := first.Invalidate(ctx, Prefix(TypeProducts))
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one memory key and one redis key")

	second.InvalidateLocal(ctx, Prefix(TypeProducts))
	_, err = GetOrLoad(ctx, second, TypeProducts, key, loader.load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestRedisStore(t *testing.T) {
	mr, client := newMiniredisClient(t)
	s := NewRedisStore(client)
	ctx := context.Background()
	now := time.Now()

	e := newEntry([]byte(`{"a":1}`), Strategy{TTL: time.Minute, StaleWhileRevalidate: 30 * time.Second}, now)
	require.NoError(t, s.Set(ctx, "kct:orders:1", e))
	assert.True(t, mr.TTL("kct:orders:1") > time.Minute)

	got, ok, err := s.Get(ctx, "kct:orders:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(got.Value))

	require.NoError(t, mr.Set("kct:orders:corrupt", "not json"))
	_, ok, err = s.Get(ctx, "kct:orders:corrupt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Get(ctx, "kct:orders:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.DeletePrefix(ctx, "kct:orders:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, mr.Keys())

	expired := &Entry{Value: []byte(`1`), StaleUntil: now.Add(-time.Second)}
	require.NoError(t, s.Set(ctx, "kct:orders:old", expired))
	assert.False(t, mr.Exists("kct:orders:old"), "already expired entries are not written")
}
