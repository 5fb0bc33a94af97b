package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/domain/shared/valueobject"
)

// EventTypeOrderPaid is published once a checkout has been paid and the order stored
const EventTypeOrderPaid = "order.paid"

// OrderPaidEvent carries what subscribers need without reloading the order
type OrderPaidEvent struct {
	shared.BaseDomainEvent
	OrderNumber     string               `json:"order_number"`
	CustomerID      *uuid.UUID           `json:"customer_id,omitempty"`
	CustomerEmail   string               `json:"customer_email"`
	CustomerName    string               `json:"customer_name"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	Tax             decimal.Decimal      `json:"tax"`
	Shipping        decimal.Decimal      `json:"shipping"`
	Total           decimal.Decimal      `json:"total"`
	Currency        string               `json:"currency"`
	Items           []Item               `json:"items"`
	ShippingAddress *valueobject.Address `json:"shipping_address,omitempty"`
	PlacedAt        time.Time            `json:"placed_at"`
}

// NewOrderPaidEvent creates an OrderPaidEvent for o
func NewOrderPaidEvent(o *Order) *OrderPaidEvent {
	return &OrderPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPaid, AggregateTypeOrder, o.ID),
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		CustomerEmail:   o.CustomerEmail,
		CustomerName:    o.CustomerName,
		Subtotal:        o.Totals.Subtotal,
		Tax:             o.Totals.Tax,
		Shipping:        o.Totals.Shipping,
		Total:           o.Totals.Total,
		Currency:        o.Totals.Currency,
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		PlacedAt:        o.CreatedAt,
	}
}
