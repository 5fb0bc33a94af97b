package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/domain/shared/valueobject"
)

// AggregateTypeOrder is the aggregate type name for orders
const AggregateTypeOrder = "Order"

// Status is the fulfilment status of an order
type Status string

const (
	StatusPending       Status = "pending"
	StatusProcessing    Status = "processing"
	StatusPaymentFailed Status = "payment_failed"
	StatusDisputed      Status = "disputed"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
)

// PaymentStatus is the payment state of an order
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentDisputed PaymentStatus = "disputed"
)

// Item is one order line. UnitPrice is in dollars.
type Item struct {
	ProductID     *uuid.UUID      `json:"product_id,omitempty"`
	VariantID     *uuid.UUID      `json:"variant_id,omitempty"`
	StripePriceID string          `json:"stripe_price_id,omitempty"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku,omitempty"`
	Size          string          `json:"size,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// LineTotal returns UnitPrice * Quantity
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsTotal sums line totals
func ItemsTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Totals are order amounts in dollars
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
	Currency string
}

// TotalsFromCents builds Totals from Stripe minor-unit amounts
func TotalsFromCents(subtotal, tax, shipping, total int64, currency string) Totals {
	return Totals{
		Subtotal: valueobject.FromCents(subtotal).Amount(),
		Tax:      valueobject.FromCents(tax).Amount(),
		Shipping: valueobject.FromCents(shipping).Amount(),
		Total:    valueobject.FromCents(total).Amount(),
		Currency: strings.ToLower(currency),
	}
}

// Order is a paid (or failed) storefront purchase
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber             string
	CustomerID              *uuid.UUID
	CustomerEmail           string
	CustomerName            string
	Phone                   string
	StripeCheckoutSessionID string
	StripePaymentIntentID   string
	Status                  Status
	PaymentStatus           PaymentStatus
	Totals                  Totals
	Items                   []Item
	ShippingAddress         *valueobject.Address
	PaymentError            string
}

// PaidCheckout carries what a completed, paid checkout session reports
type PaidCheckout struct {
	StripeSessionID       string
	StripePaymentIntentID string
	CustomerID            *uuid.UUID
	CustomerEmail         string
	CustomerName          string
	Phone                 string
	Totals                Totals
	Items                 []Item
	ShippingAddress       *valueobject.Address
}

// NewPaidOrder creates a processing, paid order and records an OrderPaidEvent
func NewPaidOrder(pc PaidCheckout, now time.Time) (*Order, error) {
	if pc.StripeSessionID == "" {
		return nil, shared.NewDomainError("INVALID_SESSION", "Checkout session ID is required")
	}
	number, err := GenerateOrderNumber(now)
	if err != nil {
		return nil, err
	}

	o := &Order{
		BaseAggregateRoot:       shared.NewBaseAggregateRoot(),
		OrderNumber:             number,
		CustomerID:              pc.CustomerID,
		CustomerEmail:           strings.ToLower(strings.TrimSpace(pc.CustomerEmail)),
		CustomerName:            pc.CustomerName,
		Phone:                   pc.Phone,
		StripeCheckoutSessionID: pc.StripeSessionID,
		StripePaymentIntentID:   pc.StripePaymentIntentID,
		Status:                  StatusProcessing,
		PaymentStatus:           PaymentPaid,
		Totals:                  pc.Totals,
		Items:                   pc.Items,
		ShippingAddress:         pc.ShippingAddress,
	}
	o.CreatedAt = now
	o.UpdatedAt = now

	o.AddDomainEvent(NewOrderPaidEvent(o))
	return o, nil
}

// MarkPaid records a successful payment intent
func (o *Order) MarkPaid() {
	o.Status = StatusProcessing
	o.PaymentStatus = PaymentPaid
	o.PaymentError = ""
	o.Touch()
}

// MarkPaymentFailed records a failed payment attempt
func (o *Order) MarkPaymentFailed(reason string) {
	if reason == "" {
		reason = "Payment failed"
	}
	o.Status = StatusPaymentFailed
	o.PaymentStatus = PaymentFailed
	o.PaymentError = reason
	o.Touch()
}

// MarkDisputed records a chargeback
func (o *Order) MarkDisputed() {
	o.Status = StatusDisputed
	o.PaymentStatus = PaymentDisputed
	o.Touch()
}

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderNumber returns ORD-<unix ms>-<6 upper-case alphanumerics>
func GenerateOrderNumber(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	alphabetLen := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("generate order number: %w", err)
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix), nil
}
