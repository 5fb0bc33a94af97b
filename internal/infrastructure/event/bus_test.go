package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/cache"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Order", uuid.New())}
}

type recorder struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (r *recorder) handler(name string, err error, eventTypes ...string) *FuncHandler {
	return NewFuncHandler(name, func(_ context.Context, e shared.DomainEvent) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
		return err
	}, eventTypes...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	paid, all := &recorder{}, &recorder{}

	bus.Subscribe(paid.handler("paid", nil, "order.paid"))
	bus.Subscribe(all.handler("all", nil))

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("order.paid"), newTestEvent("order.cancelled")))
	assert.Equal(t, 1, paid.count())
	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_HandlerFailureDoesNotStopOthers(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	second := &recorder{}

	bus.Subscribe(NewFuncHandler("panics", func(context.Context, shared.DomainEvent) error {
		panic("boom")
	}, "order.paid"))
	bus.Subscribe((&recorder{}).handler("fails", errors.New("x"), "order.paid"))
	bus.Subscribe(second.handler("ok", nil, "order.paid"))

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("order.paid")))
	assert.Equal(t, 1, second.count())
}

func TestInMemoryEventBus_UnsubscribeAndStop(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	r := &recorder{}
	h := r.handler("h", nil, "order.paid")

	bus.Subscribe(h)
	bus.Unsubscribe(h)
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("order.paid")))
	assert.Equal(t, 0, r.count())

	bus.Subscribe(h)
	require.NoError(t, bus.Stop(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("order.paid")))
	assert.Equal(t, 0, r.count())

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("order.paid")))
	assert.Equal(t, 1, r.count())
}

func TestIdempotentHandler(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	r := &recorder{}
	h := NewIdempotentHandler(r.handler("confirmation-email", nil, "order.paid"), store, 0, zaptest.NewLogger(t))
	ctx := context.Background()

	e := newTestEvent("order.paid")
	require.NoError(t, h.Handle(ctx, e))
	require.NoError(t, h.Handle(ctx, e))
	require.NoError(t, h.Handle(ctx, newTestEvent("order.paid")))

	assert.Equal(t, 2, r.count())
	assert.Equal(t, IdempotencyStats{Processed: 2, Duplicate: 1}, h.Stats())
	assert.Equal(t, []string{"order.paid"}, h.EventTypes())
}

func TestIdempotentHandler_FailureAllowsRetry(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	calls := 0
	h := NewIdempotentHandler(NewFuncHandler("flaky", func(context.Context, shared.DomainEvent) error {
		calls++
		if calls == 1 {
			return errors.New("temporary")
		}
		return nil
	}, "order.paid"), store, 0, nil)

	e := newTestEvent("order.paid")
	require.Error(t, h.Handle(context.Background(), e))
	require.NoError(t, h.Handle(context.Background(), e))
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1), h.Stats().Failed)
}
