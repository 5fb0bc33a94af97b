package event

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/domain/shared"
)

// DefaultHandlerIdempotencyTTL is how long a handled event ID is remembered
const DefaultHandlerIdempotencyTTL = 24 * time.Hour

// FuncHandler adapts a function to shared.EventHandler
type FuncHandler struct {
	name  string
	types []string
	fn    func(ctx context.Context, event shared.DomainEvent) error
}

// NewFuncHandler creates a named handler for the given event types
func NewFuncHandler(name string, fn func(ctx context.Context, event shared.DomainEvent) error, eventTypes ...string) *FuncHandler {
	return &FuncHandler{name: name, types: eventTypes, fn: fn}
}

// Name identifies the handler in logs and idempotency keys
func (h *FuncHandler) Name() string { return h.name }

// EventTypes returns the subscribed event types
func (h *FuncHandler) EventTypes() []string { return h.types }

// Handle calls the wrapped function
func (h *FuncHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	return h.fn(ctx, event)
}

// IdempotencyStats is a snapshot of idempotent handler counters
type IdempotencyStats struct {
	Processed int64 `json:"processed"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

// IdempotentHandler runs a handler at most once per event ID
type IdempotentHandler struct {
	handler *FuncHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger

	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
}

// NewIdempotentHandler wraps handler with the store. ttl ≤ 0 uses DefaultHandlerIdempotencyTTL.
func NewIdempotentHandler(handler *FuncHandler, store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) *IdempotentHandler {
	if ttl <= 0 {
		ttl = DefaultHandlerIdempotencyTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotentHandler{handler: handler, store: store, ttl: ttl, logger: logger}
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

func (h *IdempotentHandler) key(event shared.DomainEvent) string {
	return "event:" + h.handler.Name() + ":" + event.EventID().String()
}

// Handle processes the event unless the same handler already processed it.
// A failed run forgets the key so redelivery can retry.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	key := h.key(event)
	fields := []zap.Field{
		zap.String("handler", h.handler.Name()),
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	}

	isNew, err := h.store.MarkProcessed(ctx, key, h.ttl)
	if err != nil {
		h.logger.Warn("failed to check idempotency, processing anyway", append(fields, zap.Error(err))...)
	} else if !isNew {
		h.duplicate.Add(1)
		h.logger.Debug("duplicate event skipped", fields...)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		if ferr := h.store.Forget(ctx, key); ferr != nil {
			h.logger.Warn("failed to forget idempotency key", append(fields, zap.Error(ferr))...)
		}
		return err
	}

	h.processed.Add(1)
	return nil
}

// Stats returns the handler counters
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed: h.processed.Load(),
		Duplicate: h.duplicate.Load(),
		Failed:    h.failed.Load(),
	}
}

var (
	_ shared.EventHandler = (*FuncHandler)(nil)
	_ shared.EventHandler = (*IdempotentHandler)(nil)
)
