package billing

import "time"

// Price is a Stripe price
type Price struct {
	ID         string
	Active     bool
	UnitAmount int64 // cents
	Currency   string
	ProductID  string
}

// CreatePriceInput contains input for creating an ad-hoc price
type CreatePriceInput struct {
	ProductName string
	UnitAmount  int64 // cents
	Metadata    map[string]string
}

// LineItem is one priced line of a checkout session
type LineItem struct {
	PriceID  string
	Quantity int64
}

// CreateCheckoutSessionInput contains input for a hosted payment checkout
type CreateCheckoutSessionInput struct {
	LineItems         []LineItem
	CustomerEmail     string
	SuccessURL        string
	CancelURL         string
	ExpiresAt         time.Time
	ShippingCountries []string
	Metadata          map[string]string
}

// CheckoutSessionOutput contains the result of creating a checkout session
type CheckoutSessionOutput struct {
	SessionID string
	URL       string
	ExpiresAt time.Time
}
