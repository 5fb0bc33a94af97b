package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/pkg/debounce"
)

// DefaultInvalidateDelay collapses bursts of invalidations
const DefaultInvalidateDelay = 300 * time.Millisecond

// PrefixInvalidator removes cached keys by prefix
type PrefixInvalidator interface {
	Invalidate(ctx context.Context, prefix string) (int, error)
}

// Invalidator batches prefix invalidations. Prefixes requested within the
// delay are applied together once the burst ends.
type Invalidator struct {
	target      PrefixInvalidator
	broadcaster *Broadcaster
	logger      *zap.Logger
	timeout     time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	flush   *debounce.Callback[struct{}]
}

// InvalidatorOption configures an Invalidator
type InvalidatorOption func(*Invalidator)

// WithBroadcaster publishes applied prefixes to other instances
func WithBroadcaster(b *Broadcaster) InvalidatorOption {
	return func(i *Invalidator) {
		i.broadcaster = b
	}
}

// WithInvalidatorLogger sets the logger for the invalidator
func WithInvalidatorLogger(logger *zap.Logger) InvalidatorOption {
	return func(i *Invalidator) {
		i.logger = logger
	}
}

// NewInvalidator creates an invalidator that applies prefixes to target after delay
func NewInvalidator(target PrefixInvalidator, delay time.Duration, opts ...InvalidatorOption) *Invalidator {
	i := &Invalidator{
		target:  target,
		logger:  zap.NewNop(),
		timeout: connectTimeout,
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	if delay <= 0 {
		delay = DefaultInvalidateDelay
	}
	i.flush = debounce.NewCallback(func(struct{}) { i.apply() }, delay)
	return i
}

// Invalidate schedules prefix for removal
func (i *Invalidator) Invalidate(prefix string) {
	i.mu.Lock()
	i.pending[prefix] = struct{}{}
	i.mu.Unlock()

	i.flush.Call(struct{}{})
}

// InvalidateType schedules every key of cache type t for removal
func (i *Invalidator) InvalidateType(t Type) {
	i.Invalidate(Prefix(t))
}

// Flush applies pending prefixes immediately. It reports whether anything ran.
func (i *Invalidator) Flush() bool {
	return i.flush.Flush()
}

// Close applies any pending prefixes
func (i *Invalidator) Close() {
	i.flush.Flush()
}

func (i *Invalidator) takePending() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	prefixes := make([]string, 0, len(i.pending))
	for p := range i.pending {
		prefixes = append(prefixes, p)
	}
	i.pending = make(map[string]struct{})
	sort.Strings(prefixes)
	return prefixes
}

func (i *Invalidator) apply() {
	prefixes := i.takePending()
	if len(prefixes) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()

	for _, p := range prefixes {
		n, err := i.target.Invalidate(ctx, p)
		if err != nil {
			i.logger.Warn("Cache invalidation failed", zap.String("prefix", p), zap.Error(err))
			continue
		}
		i.logger.Debug("Cache invalidated", zap.String("prefix", p), zap.Int("removed", n))

		if i.broadcaster != nil {
			if err := i.broadcaster.Publish(ctx, p); err != nil {
				i.logger.Warn("Cache invalidation broadcast failed", zap.String("prefix", p), zap.Error(err))
			}
		}
	}
}
