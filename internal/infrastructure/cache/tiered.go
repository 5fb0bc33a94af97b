package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultRefreshTimeout = 10 * time.Second

// TieredCache reads through a memory tier and an optional shared tier.
// Fresh hits are returned directly. Stale hits inside the
// stale-while-revalidate window are returned and refreshed in the
// background. Misses are loaded once per key no matter how many callers wait.
type TieredCache struct {
	memory         *MemoryStore
	shared         Store
	group          singleflight.Group
	refreshing     sync.Map
	logger         *zap.Logger
	now            func() time.Time
	refreshTimeout time.Duration
	defaultTTL     time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	memoryHits atomic.Int64
	sharedHits atomic.Int64
	staleHits  atomic.Int64
	misses     atomic.Int64
}

// TieredCacheOption configures a TieredCache
type TieredCacheOption func(*TieredCache)

// WithSharedStore adds a shared tier behind the memory tier
func WithSharedStore(s Store) TieredCacheOption {
	return func(c *TieredCache) {
		c.shared = s
	}
}

// WithTieredLogger sets the logger for the tiered cache
func WithTieredLogger(logger *zap.Logger) TieredCacheOption {
	return func(c *TieredCache) {
		c.logger = logger
	}
}

// WithDefaultTTL sets the TTL of types without a strategy
func WithDefaultTTL(d time.Duration) TieredCacheOption {
	return func(c *TieredCache) {
		if d > 0 {
			c.defaultTTL = d
		}
	}
}

// WithRefreshTimeout bounds a background refresh
func WithRefreshTimeout(d time.Duration) TieredCacheOption {
	return func(c *TieredCache) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

func withTieredClock(now func() time.Time) TieredCacheOption {
	return func(c *TieredCache) {
		c.now = now
	}
}

// NewTieredCache creates a tiered cache over memory. The cache takes
// ownership of the memory tier and closes it on Close.
func NewTieredCache(memory *MemoryStore, opts ...TieredCacheOption) *TieredCache {
	c := &TieredCache{
		memory:         memory,
		logger:         zap.NewNop(),
		now:            time.Now,
		refreshTimeout: defaultRefreshTimeout,
		defaultTTL:     DefaultMemoryTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Loader produces the encoded value for a key on a miss
type Loader func(ctx context.Context) ([]byte, error)

// GetOrLoadBytes returns the encoded value for key, loading it on a miss
func (c *TieredCache) GetOrLoadBytes(ctx context.Context, t Type, key string, loader Loader) ([]byte, error) {
	if e, ok := c.lookup(ctx, key); ok {
		if e.IsFresh(c.now()) {
			return e.Value, nil
		}
		c.staleHits.Add(1)
		c.refresh(ctx, t, key, loader)
		return e.Value, nil
	}

	c.misses.Add(1)
	return c.load(ctx, t, key, loader)
}

// GetOrLoad is the typed form of GetOrLoadBytes. Values are stored as JSON.
func GetOrLoad[T any](ctx context.Context, c *TieredCache, t Type, key string, loader func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	data, err := c.GetOrLoadBytes(ctx, t, key, func(ctx context.Context) ([]byte, error) {
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return out, nil
}

func (c *TieredCache) lookup(ctx context.Context, key string) (*Entry, bool) {
	if e, ok, _ := c.memory.Get(ctx, key); ok {
		c.memoryHits.Add(1)
		return e, true
	}
	if c.shared == nil {
		return nil, false
	}

	e, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Shared cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	c.sharedHits.Add(1)
	_ = c.memory.Set(ctx, key, e)
	return e, true
}

func (c *TieredCache) load(ctx context.Context, t Type, key string, loader Loader) ([]byte, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		data, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, newEntry(data, c.strategyFor(t), c.now()))
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *TieredCache) strategyFor(t Type) Strategy {
	if s, ok := Strategies[t]; ok {
		return s
	}
	return Strategy{TTL: c.defaultTTL}
}

func (c *TieredCache) store(ctx context.Context, key string, e *Entry) {
	_ = c.memory.Set(ctx, key, e)
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, key, e); err != nil {
		c.logger.Warn("Shared cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// refresh reloads key in the background, at most once at a time per key
func (c *TieredCache) refresh(ctx context.Context, t Type, key string, loader Loader) {
	if _, running := c.refreshing.LoadOrStore(key, struct{}{}); running {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.refreshing.Delete(key)
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer c.refreshing.Delete(key)
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Panic in cache refresh", zap.String("key", key), zap.Any("panic", r))
			}
		}()

		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()

		if _, err := c.load(refreshCtx, t, key, loader); err != nil {
			c.logger.Warn("Background cache refresh failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

// Delete removes key from every tier
func (c *TieredCache) Delete(ctx context.Context, key string) error {
	_ = c.memory.Delete(ctx, key)
	if c.shared != nil {
		return c.shared.Delete(ctx, key)
	}
	return nil
}

// Invalidate removes every key starting with prefix from every tier
func (c *TieredCache) Invalidate(ctx context.Context, prefix string) (int, error) {
	removed, _ := c.memory.DeletePrefix(ctx, prefix)
	if c.shared == nil {
		return removed, nil
	}
	n, err := c.shared.DeletePrefix(ctx, prefix)
	return removed + n, err
}

// InvalidateLocal removes keys from the memory tier only. It is used when
// another instance has already cleared the shared tier.
func (c *TieredCache) InvalidateLocal(ctx context.Context, prefix string) int {
	removed, _ := c.memory.DeletePrefix(ctx, prefix)
	return removed
}

// Stats is a snapshot of cache counters
type Stats struct {
	MemoryHits int64 `json:"memory_hits"`
	SharedHits int64 `json:"shared_hits"`
	StaleHits  int64 `json:"stale_hits"`
	Misses     int64 `json:"misses"`
	Keys       int   `json:"keys"`
}

// Stats returns the current counters
func (c *TieredCache) Stats() Stats {
	return Stats{
		MemoryHits: c.memoryHits.Load(),
		SharedHits: c.sharedHits.Load(),
		StaleHits:  c.staleHits.Load(),
		Misses:     c.misses.Load(),
		Keys:       c.memory.Len(),
	}
}

// Close waits for background refreshes and stops the memory tier
func (c *TieredCache) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
	return c.memory.Close()
}
