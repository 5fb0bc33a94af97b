package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is the auth-side account used for email verification
type User struct {
	ID               uuid.UUID
	Email            string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsVerified reports whether the email address has been confirmed
func (u *User) IsVerified() bool {
	return u != nil && u.EmailConfirmedAt != nil
}

// UserRepository reads and confirms users
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// ConfirmEmail sets email_confirmed_at if it is not already set
	ConfirmEmail(ctx context.Context, id uuid.UUID, at time.Time) error
}
