package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kctmenswear/storefront/internal/domain/order"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/domain/shared/valueobject"
)

// OrderModel is the persistence model for the Order aggregate root.
type OrderModel struct {
	BaseModel
	OrderNumber             string              `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID              *uuid.UUID          `gorm:"type:uuid;index"`
	CustomerEmail           string              `gorm:"type:varchar(255);not null;index"`
	CustomerName            string              `gorm:"type:varchar(255)"`
	Phone                   string              `gorm:"type:varchar(50)"`
	StripeCheckoutSessionID string              `gorm:"type:varchar(255);uniqueIndex"`
	StripePaymentIntentID   string              `gorm:"type:varchar(255);index"`
	Status                  order.Status        `gorm:"type:varchar(30);not null;default:'pending'"`
	PaymentStatus           order.PaymentStatus `gorm:"type:varchar(30);not null;default:'unpaid'"`
	Subtotal                decimal.Decimal     `gorm:"type:numeric(10,2);not null;default:0"`
	TaxAmount               decimal.Decimal     `gorm:"type:numeric(10,2);not null;default:0"`
	ShippingAmount          decimal.Decimal     `gorm:"type:numeric(10,2);not null;default:0"`
	TotalAmount             decimal.Decimal     `gorm:"type:numeric(10,2);not null;default:0"`
	Currency                string              `gorm:"type:varchar(3);not null;default:'usd'"`
	Items                   string              `gorm:"type:jsonb;not null;default:'[]'"`
	ShippingAddress         *string             `gorm:"type:jsonb"`
	PaymentError            string              `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderModelFromDomain creates a new persistence model from a domain Order.
func OrderModelFromDomain(o *order.Order) (*OrderModel, error) {
	items, err := json.Marshal(nonNilItems(o.Items))
	if err != nil {
		return nil, fmt.Errorf("encode order items: %w", err)
	}
	m := &OrderModel{
		OrderNumber:             o.OrderNumber,
		CustomerID:              o.CustomerID,
		CustomerEmail:           o.CustomerEmail,
		CustomerName:            o.CustomerName,
		Phone:                   o.Phone,
		StripeCheckoutSessionID: o.StripeCheckoutSessionID,
		StripePaymentIntentID:   o.StripePaymentIntentID,
		Status:                  o.Status,
		PaymentStatus:           o.PaymentStatus,
		Subtotal:                o.Totals.Subtotal,
		TaxAmount:               o.Totals.Tax,
		ShippingAmount:          o.Totals.Shipping,
		TotalAmount:             o.Totals.Total,
		Currency:                o.Totals.Currency,
		Items:                   string(items),
		PaymentError:            o.PaymentError,
	}
	m.FromDomainBaseEntity(o.BaseEntity)
	if o.ShippingAddress != nil && !o.ShippingAddress.IsEmpty() {
		addr, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return nil, fmt.Errorf("encode shipping address: %w", err)
		}
		s := string(addr)
		m.ShippingAddress = &s
	}
	return m, nil
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() (*order.Order, error) {
	o := &order.Order{
		BaseAggregateRoot:       shared.BaseAggregateRoot{BaseEntity: m.BaseModel.ToDomain()},
		OrderNumber:             m.OrderNumber,
		CustomerID:              m.CustomerID,
		CustomerEmail:           m.CustomerEmail,
		CustomerName:            m.CustomerName,
		Phone:                   m.Phone,
		StripeCheckoutSessionID: m.StripeCheckoutSessionID,
		StripePaymentIntentID:   m.StripePaymentIntentID,
		Status:                  m.Status,
		PaymentStatus:           m.PaymentStatus,
		Totals: order.Totals{
			Subtotal: m.Subtotal,
			Tax:      m.TaxAmount,
			Shipping: m.ShippingAmount,
			Total:    m.TotalAmount,
			Currency: m.Currency,
		},
		PaymentError: m.PaymentError,
	}
	if m.Items != "" {
		if err := json.Unmarshal([]byte(m.Items), &o.Items); err != nil {
			return nil, fmt.Errorf("decode order items: %w", err)
		}
	}
	if m.ShippingAddress != nil && *m.ShippingAddress != "" {
		var addr valueobject.Address
		if err := json.Unmarshal([]byte(*m.ShippingAddress), &addr); err != nil {
			return nil, fmt.Errorf("decode shipping address: %w", err)
		}
		o.ShippingAddress = &addr
	}
	return o, nil
}

// CheckoutSessionModel is the persistence model for a checkout session record.
type CheckoutSessionModel struct {
	BaseModel
	StripeSessionID string              `gorm:"type:varchar(255);not null;uniqueIndex"`
	UserID          *uuid.UUID          `gorm:"type:uuid;index"`
	CustomerEmail   string              `gorm:"type:varchar(255)"`
	Status          order.SessionStatus `gorm:"type:varchar(20);not null;default:'created';index"`
	TotalAmount     decimal.Decimal     `gorm:"type:numeric(10,2);not null;default:0"`
	Items           string              `gorm:"type:jsonb;not null;default:'[]'"`
	ExpiresAt       time.Time           `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (CheckoutSessionModel) TableName() string {
	return "checkout_sessions"
}

// CheckoutSessionModelFromDomain creates a new persistence model from a domain CheckoutSession.
func CheckoutSessionModelFromDomain(s *order.CheckoutSession) (*CheckoutSessionModel, error) {
	items, err := json.Marshal(nonNilItems(s.Items))
	if err != nil {
		return nil, fmt.Errorf("encode session items: %w", err)
	}
	m := &CheckoutSessionModel{
		StripeSessionID: s.StripeSessionID,
		UserID:          s.UserID,
		CustomerEmail:   s.CustomerEmail,
		Status:          s.Status,
		TotalAmount:     s.TotalAmount,
		Items:           string(items),
		ExpiresAt:       s.ExpiresAt,
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	return m, nil
}

// ToDomain converts the persistence model to a domain CheckoutSession.
func (m *CheckoutSessionModel) ToDomain() (*order.CheckoutSession, error) {
	s := &order.CheckoutSession{
		BaseEntity:      m.BaseModel.ToDomain(),
		StripeSessionID: m.StripeSessionID,
		UserID:          m.UserID,
		CustomerEmail:   m.CustomerEmail,
		Status:          m.Status,
		TotalAmount:     m.TotalAmount,
		ExpiresAt:       m.ExpiresAt,
	}
	if m.Items != "" {
		if err := json.Unmarshal([]byte(m.Items), &s.Items); err != nil {
			return nil, fmt.Errorf("decode session items: %w", err)
		}
	}
	return s, nil
}

// StockReservationModel is the persistence model for a stock reservation.
type StockReservationModel struct {
	BaseModel
	VariantID  uuid.UUID               `gorm:"type:uuid;not null;index"`
	Quantity   int                     `gorm:"not null"`
	SessionKey string                  `gorm:"type:varchar(255);not null;index"`
	Status     order.ReservationStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	ExpiresAt  time.Time               `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockReservationModel) TableName() string {
	return "stock_reservations"
}

// ToDomain converts the persistence model to a domain StockReservation.
func (m *StockReservationModel) ToDomain() *order.StockReservation {
	return &order.StockReservation{
		ID:         m.ID,
		VariantID:  m.VariantID,
		Quantity:   m.Quantity,
		SessionKey: m.SessionKey,
		Status:     m.Status,
		ExpiresAt:  m.ExpiresAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func nonNilItems(items []order.Item) []order.Item {
	if items == nil {
		return []order.Item{}
	}
	return items
}
