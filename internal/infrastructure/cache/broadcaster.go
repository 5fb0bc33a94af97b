package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultInvalidationChannel is the Pub/Sub channel for cross-instance invalidation
	DefaultInvalidationChannel = "kct:cache:invalidate"
	defaultCloseTimeout        = 5 * time.Second
)

// InvalidationMessage announces a removed key prefix
type InvalidationMessage struct {
	Prefix    string `json:"prefix"`
	Origin    string `json:"origin"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster relays prefix invalidations between instances over Redis Pub/Sub.
// Messages published by this instance are ignored on receipt.
type Broadcaster struct {
	client    *redis.Client
	channel   string
	origin    string
	logger    *zap.Logger
	cancelFn  context.CancelFunc
	doneCh    chan struct{}
	doneOnce  sync.Once
	mu        sync.Mutex
	isRunning bool
}

// BroadcasterOption configures a Broadcaster
type BroadcasterOption func(*Broadcaster)

// WithChannel sets the Pub/Sub channel name
func WithChannel(channel string) BroadcasterOption {
	return func(b *Broadcaster) {
		b.channel = channel
	}
}

// WithBroadcasterLogger sets the logger for the broadcaster
func WithBroadcasterLogger(logger *zap.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

// NewBroadcaster creates a broadcaster on an existing client.
// The caller keeps ownership of the client.
func NewBroadcaster(client *redis.Client, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		client:  client,
		channel: DefaultInvalidationChannel,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish announces that prefix was invalidated
func (b *Broadcaster) Publish(ctx context.Context, prefix string) error {
	data, err := json.Marshal(InvalidationMessage{
		Prefix:    prefix,
		Origin:    b.origin,
		Timestamp: time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe listens for invalidations from other instances and calls
// apply for each. It blocks until ctx is cancelled or Close is called.
func (b *Broadcaster) Subscribe(ctx context.Context, apply func(prefix string)) error {
	b.mu.Lock()
	if b.isRunning {
		b.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	b.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	b.cancelFn = cancel
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.isRunning = false
		b.mu.Unlock()
		b.doneOnce.Do(func() { close(b.doneCh) })
	}()

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	b.logger.Info("Subscribed to cache invalidation channel", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			b.logger.Info("Cache invalidation subscription stopped")
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("Cache invalidation channel closed")
				return nil
			}
			b.handle(msg.Payload, apply)
		}
	}
}

func (b *Broadcaster) handle(payload string, apply func(prefix string)) {
	var m InvalidationMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		b.logger.Error("Failed to unmarshal invalidation message",
			zap.String("payload", payload),
			zap.Error(err))
		return
	}
	if m.Origin == b.origin || m.Prefix == "" {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic in invalidation callback", zap.Any("panic", r))
		}
	}()
	apply(m.Prefix)
}

// Close stops the subscription
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	cancelFn := b.cancelFn
	b.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-b.doneCh:
		case <-time.After(defaultCloseTimeout):
			b.logger.Warn("Timeout waiting for subscription to stop")
		}
	}
	return nil
}
