package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists orders
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByCheckoutSessionID(ctx context.Context, sessionID string) (*Order, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Order, error)
}

// CheckoutSessionRepository persists checkout session records
type CheckoutSessionRepository interface {
	Create(ctx context.Context, s *CheckoutSession) error
	FindByStripeSessionID(ctx context.Context, stripeSessionID string) (*CheckoutSession, error)
	// MarkCompleted moves a created session to completed
	MarkCompleted(ctx context.Context, stripeSessionID string) error
	// ExpireStale marks created sessions past expires_at as expired
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// ReservationRepository holds and releases inventory
type ReservationRepository interface {
	// Reserve checks availability for every request and inserts active
	// reservations in one transaction. On shortfall nothing is reserved and
	// an *InsufficientStockError is returned.
	Reserve(ctx context.Context, sessionKey string, reqs []ReservationRequest, expiresAt time.Time) error
	// Release marks a session's active reservations released
	Release(ctx context.Context, sessionKey string) (int64, error)
	// Finalize marks a session's active reservations finalized and deducts inventory
	Finalize(ctx context.Context, sessionKey string) (int64, error)
	// ReleaseExpired releases active reservations past their expiry
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)
}
