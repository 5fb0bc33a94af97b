package email

import (
	"fmt"
	"time"

	"github.com/kctmenswear/storefront/internal/domain/shared/valueobject"
)

// Template names an embedded email template
type Template string

const (
	TemplateVerification      Template = "email_verification"
	TemplateOrderConfirmation Template = "order_confirmation"
)

func (t Template) file() string {
	return string(t) + ".html"
}

// VerificationData fills the email_verification template
type VerificationData struct {
	Name            string
	VerificationURL string
	ExpiresIn       string
}

// OrderLine is one item in the order confirmation
type OrderLine struct {
	Name      string
	Size      string
	Quantity  int
	UnitPrice string
}

// OrderConfirmationData fills the order_confirmation template
type OrderConfirmationData struct {
	OrderNumber     string
	OrderDate       string
	CustomerName    string
	Items           []OrderLine
	Subtotal        string
	Shipping        string
	Tax             string
	Total           string
	ShippingAddress *valueobject.Address
}

// VerificationMessage builds the email verification message
func VerificationMessage(to string, data VerificationData) Message {
	return Message{
		To:       to,
		Subject:  "Verify Your Email Address - KCT Menswear",
		Template: TemplateVerification,
		Data:     data,
	}
}

// OrderConfirmationMessage builds the order confirmation message
func OrderConfirmationMessage(to string, data OrderConfirmationData) Message {
	return Message{
		To:             to,
		Subject:        fmt.Sprintf("Order Confirmation - #%s", data.OrderNumber),
		Template:       TemplateOrderConfirmation,
		Data:           data,
		IdempotencyKey: "order-confirmation/" + data.OrderNumber,
		Tags:           map[string]string{"order_number": data.OrderNumber},
	}
}

// FormatDuration renders a link lifetime for humans, e.g. "24 hours"
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		return d.String()
	}
}
