// Package loadingstate wraps an operation with a loading flag, error capture
// and an optional error notification.
package loadingstate

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// DefaultErrorTitle is the notification title when none is configured
const DefaultErrorTitle = "Error"

// DefaultErrorDescription is used when the captured error has an empty message
const DefaultErrorDescription = "An unexpected error occurred"

// VariantDestructive marks error notifications
const VariantDestructive = "destructive"

// Notification is a user-facing message raised on failure
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// WriterNotifier prints notifications as "<title>: <description>" lines
type WriterNotifier struct {
	W io.Writer
}

// Notify implements Notifier
func (w WriterNotifier) Notify(_ context.Context, n Notification) {
	fmt.Fprintf(w.W, "%s: %s\n", n.Title, n.Description)
}

// ZapNotifier logs notifications at warn level
type ZapNotifier struct {
	Logger *zap.Logger
}

// Notify implements Notifier
func (z ZapNotifier) Notify(_ context.Context, n Notification) {
	z.Logger.Warn("Notification",
		zap.String("title", n.Title),
		zap.String("description", n.Description),
		zap.String("variant", n.Variant))
}

type options struct {
	showErrorToast bool
	errorTitle     string
	context        string
	notifier       Notifier
	logger         *zap.Logger
}

// Option configures a State
type Option func(*options)

// WithoutErrorNotification disables the failure notification
func WithoutErrorNotification() Option {
	return func(o *options) {
		o.showErrorToast = false
	}
}

// WithErrorTitle sets the failure notification title
func WithErrorTitle(title string) Option {
	return func(o *options) {
		if title != "" {
			o.errorTitle = title
		}
	}
}

// WithContext names the wrapped operation in logs
func WithContext(name string) Option {
	return func(o *options) {
		o.context = name
	}
}

// WithNotifier sets where failure notifications go
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithLogger sets the logger used for failures
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// State tracks whether an operation is running and its last error
type State struct {
	mu      sync.RWMutex
	loading bool
	err     error
	opts    options
}

// New creates a State. Notifications are on by default.
func New(opts ...Option) *State {
	o := options{
		showErrorToast: true,
		errorTitle:     DefaultErrorTitle,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &State{opts: o}
}

// Execute runs fn with the loading flag set. On failure the error is stored,
// the zero value is returned and a single notification is sent if enabled.
// Loading is cleared however fn exits.
func Execute[T any](ctx context.Context, s *State, fn func(ctx context.Context) (T, error)) (T, error) {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	defer s.SetLoading(false)

	result, err := fn(ctx)
	if err != nil {
		s.fail(ctx, err)
		var zero T
		return zero, err
	}
	return result, nil
}

// Run is Execute for operations without a result
func Run(ctx context.Context, s *State, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (s *State) fail(ctx context.Context, err error) {
	s.SetError(err)

	if !s.opts.showErrorToast {
		return
	}

	name := s.opts.context
	if name == "" {
		name = "operation"
	}
	s.opts.logger.Error("Error in "+name, zap.Error(err))

	if s.opts.notifier == nil {
		return
	}
	description := err.Error()
	if description == "" {
		description = DefaultErrorDescription
	}
	s.opts.notifier.Notify(ctx, Notification{
		Title:       s.opts.errorTitle,
		Description: description,
		Variant:     VariantDestructive,
	})
}

// Loading reports whether an operation is in flight
func (s *State) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last captured error
func (s *State) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Reset clears both the loading flag and the error
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.err = nil
}

// SetLoading sets the loading flag
func (s *State) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// SetError sets the captured error
func (s *State) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// TryBegin sets loading if it is not already set. It reports whether the
// caller now owns the in-flight slot.
func (s *State) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return false
	}
	s.loading = true
	s.err = nil
	return true
}
