// Package debounce provides trailing-edge debounce primitives.
//
// Every update cancels the pending timer and schedules a new one after the
// configured delay, so only the last update inside a quiet window fires.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is used when a non-positive delay is given
const DefaultDelay = 300 * time.Millisecond

func normalizeDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultDelay
	}
	return d
}

// Value holds a value whose published form lags the latest Set by the delay
type Value[T any] struct {
	mu        sync.Mutex
	delay     time.Duration
	debounced T
	timer     *time.Timer
	seq       uint64
	changes   chan T
	stopped   bool
}

// NewValue creates a debounced value starting at initial
func NewValue[T any](initial T, delay time.Duration) *Value[T] {
	return &Value[T]{
		delay:     normalizeDelay(delay),
		debounced: initial,
		changes:   make(chan T, 1),
	}
}

// Set records a new value and restarts the quiet window
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.stopped {
		return
	}
	if v.timer != nil {
		v.timer.Stop()
	}
	v.seq++
	seq := v.seq
	v.timer = time.AfterFunc(v.delay, func() {
		v.fire(seq, val)
	})
}

func (v *Value[T]) fire(seq uint64, val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	// A later Set raced with this timer; its own timer will publish.
	if v.stopped || seq != v.seq {
		return
	}
	v.debounced = val
	v.timer = nil

	// Keep only the newest unread value.
	select {
	case <-v.changes:
	default:
	}
	v.changes <- val
}

// Get returns the last published value
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.debounced
}

// Changes returns a channel that receives each published value.
// The channel is closed by Stop.
func (v *Value[T]) Changes() <-chan T {
	return v.changes
}

// Stop cancels any pending publish and closes the Changes channel
func (v *Value[T]) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.stopped {
		return
	}
	v.stopped = true
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	close(v.changes)
}

// Callback wraps fn so that bursts of calls collapse into one trailing call
// carrying the arguments of the last call.
type Callback[A any] struct {
	mu      sync.Mutex
	fn      func(A)
	delay   time.Duration
	timer   *time.Timer
	seq     uint64
	pending bool
	lastArg A
}

// NewCallback creates a debounced callback
func NewCallback[A any](fn func(A), delay time.Duration) *Callback[A] {
	return &Callback[A]{
		fn:    fn,
		delay: normalizeDelay(delay),
	}
}

// Call schedules fn(arg) after the delay, replacing any pending call
func (c *Callback[A]) Call(arg A) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.pending = true
	c.lastArg = arg
	c.timer = time.AfterFunc(c.delay, func() {
		c.fire(seq)
	})
}

func (c *Callback[A]) fire(seq uint64) {
	c.mu.Lock()
	if !c.pending || seq != c.seq {
		c.mu.Unlock()
		return
	}
	arg := c.lastArg
	c.pending = false
	c.timer = nil
	c.mu.Unlock()

	c.fn(arg)
}

// Cancel drops the pending call, if any
func (c *Callback[A]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = false
	c.seq++
}

// Flush runs the pending call immediately. It reports whether a call ran.
func (c *Callback[A]) Flush() bool {
	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	arg := c.lastArg
	c.pending = false
	c.seq++
	c.mu.Unlock()

	c.fn(arg)
	return true
}

// Pending reports whether a call is scheduled
func (c *Callback[A]) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// State pairs an immediately updated value with its debounced copy
type State[T any] struct {
	mu        sync.RWMutex
	current   T
	debounced *Value[T]
}

// NewState creates a State with both copies set to initial
func NewState[T any](initial T, delay time.Duration) *State[T] {
	return &State[T]{
		current:   initial,
		debounced: NewValue(initial, delay),
	}
}

// Set updates the immediate value and schedules the debounced one
func (s *State[T]) Set(val T) {
	s.mu.Lock()
	s.current = val
	s.mu.Unlock()
	s.debounced.Set(val)
}

// Value returns the immediate value
func (s *State[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Debounced returns the debounced value
func (s *State[T]) Debounced() T {
	return s.debounced.Get()
}

// Changes returns the debounced change stream
func (s *State[T]) Changes() <-chan T {
	return s.debounced.Changes()
}

// Stop releases the pending timer
func (s *State[T]) Stop() {
	s.debounced.Stop()
}
