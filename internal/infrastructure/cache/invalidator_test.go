package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTarget struct {
	mu       sync.Mutex
	prefixes []string
}

func (r *recordingTarget) Invalidate(_ context.Context, prefix string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefix)
	return 1, nil
}

func (r *recordingTarget) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.prefixes...)
}

func TestInvalidator_CollapsesBurst(t *testing.T) {
	target := &recordingTarget{}
	inv := NewInvalidator(target, time.Hour)

	inv.InvalidateType(TypeProducts)
	inv.InvalidateType(TypeCategories)
	inv.InvalidateType(TypeProducts)

	assert.Empty(t, target.seen(), "nothing runs before the delay")
	assert.True(t, inv.Flush())
	assert.Equal(t, []string{"kct:categories:", "kct:products:"}, target.seen())
	assert.False(t, inv.Flush(), "nothing left to flush")
}

func TestInvalidator_FiresAfterDelay(t *testing.T) {
	target := &recordingTarget{}
	inv := NewInvalidator(target, 20*time.Millisecond)
	defer inv.Close()

	inv.Invalidate("kct:orders:")
	assert.Eventually(t, func() bool { return len(target.seen()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestInvalidator_ClearsTieredCache(t *testing.T) {
	c := NewTieredCache(NewMemoryStore())
	defer c.Close()
	ctx := context.Background()

	_, err := GetOrLoad(ctx, c, TypeProducts, Key(TypeProducts, "1"), func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.Equal(t, 1, c.Stats().Keys)

	inv := NewInvalidator(c, time.Hour)
	inv.InvalidateType(TypeProducts)
	inv.Close()

	assert.Equal(t, 0, c.Stats().Keys)
}

func TestBroadcaster_RelaysToOtherInstances(t *testing.T) {
	mr, client := newMiniredisClient(t)

	sender := NewBroadcaster(client)
	receiver := NewBroadcaster(client)

	var (
		mu       sync.Mutex
		received []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- receiver.Subscribe(ctx, func(prefix string) {
			mu.Lock()
			received = append(received, prefix)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultInvalidationChannel)[DefaultInvalidationChannel] == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, receiver.Publish(ctx, "kct:own:"))
	require.NoError(t, sender.Publish(ctx, "kct:products:"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1 && received[0] == "kct:products:"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, receiver.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop")
	}
}

func TestBroadcaster_SecondSubscribeFails(t *testing.T) {
	_, client := newMiniredisClient(t)
	b := NewBroadcaster(client)
	b.isRunning = true

	err := b.Subscribe(context.Background(), func(string) {})
	assert.Error(t, err)
}
