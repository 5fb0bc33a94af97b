package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kctmenswear/storefront/internal/domain/shared"
)

// SessionStatus is the lifecycle state of a checkout session record
type SessionStatus string

const (
	SessionCreated   SessionStatus = "created"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// CheckoutSession mirrors a Stripe hosted checkout session
type CheckoutSession struct {
	shared.BaseEntity
	StripeSessionID string
	UserID          *uuid.UUID
	CustomerEmail   string
	Status          SessionStatus
	TotalAmount     decimal.Decimal
	Items           []Item
	ExpiresAt       time.Time
}

// NewCheckoutSession creates a session record in the created state
func NewCheckoutSession(id uuid.UUID, stripeSessionID string, userID *uuid.UUID, email string, items []Item, expiresAt time.Time) *CheckoutSession {
	s := &CheckoutSession{
		BaseEntity:      shared.NewBaseEntity(),
		StripeSessionID: stripeSessionID,
		UserID:          userID,
		CustomerEmail:   email,
		Status:          SessionCreated,
		TotalAmount:     ItemsTotal(items),
		Items:           items,
		ExpiresAt:       expiresAt,
	}
	if id != uuid.Nil {
		s.ID = id
	}
	return s
}

// IsExpired reports whether an open session has passed its expiry
func (s *CheckoutSession) IsExpired(now time.Time) bool {
	return s.Status == SessionCreated && now.After(s.ExpiresAt)
}
