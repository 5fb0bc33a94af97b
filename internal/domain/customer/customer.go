package customer

import (
	"context"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kctmenswear/storefront/internal/domain/shared"
)

// DefaultTier is assigned to new customers
const DefaultTier = "standard"

// Customer is a shopper known to the store
type Customer struct {
	shared.BaseEntity
	Email                 string
	FirstName             string
	LastName              string
	Name                  string
	Phone                 string
	StripeCustomerID      string
	AcceptsEmailMarketing bool
	TotalSpent            decimal.Decimal
	CustomerTier          string
	VIPStatus             bool
}

// NewCustomer creates a customer, splitting fullName into first and last name
func NewCustomer(email, fullName, phone, stripeCustomerID string) (*Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "A valid email address is required")
	}

	first, last := SplitName(fullName)
	return &Customer{
		BaseEntity:       shared.NewBaseEntity(),
		Email:            email,
		FirstName:        first,
		LastName:         last,
		Name:             strings.TrimSpace(fullName),
		Phone:            phone,
		StripeCustomerID: stripeCustomerID,
		TotalSpent:       decimal.Zero,
		CustomerTier:     DefaultTier,
	}, nil
}

// SplitName splits "Jane Q Public" into ("Jane", "Q Public")
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// Repository persists customers
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
}
