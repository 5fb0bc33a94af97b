package billing

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/price"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// ErrWebhookSecretMissing is returned when webhooks arrive without a configured secret
var ErrWebhookSecretMissing = errors.New("stripe: webhook secret is not configured")

// StripeAdapter implements the Stripe operations used by checkout and webhooks
type StripeAdapter struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewStripeAdapter creates a new Stripe adapter
func NewStripeAdapter(config *StripeConfig, logger *zap.Logger) (*StripeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.InitStripeClient()

	return &StripeAdapter{
		config: config,
		logger: logger,
	}, nil
}

// GetPrice retrieves a price by ID
func (a *StripeAdapter) GetPrice(ctx context.Context, priceID string) (*Price, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx

	p, err := price.Get(priceID, params)
	if err != nil {
		a.logger.Error("Failed to get Stripe price",
			zap.String("price_id", priceID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to get price: %w", err)
	}
	return toPrice(p), nil
}

// CreatePrice creates a one-off price with inline product data
func (a *StripeAdapter) CreatePrice(ctx context.Context, input CreatePriceInput) (*Price, error) {
	params := &stripe.PriceParams{
		Currency:   stripe.String(a.config.Currency),
		UnitAmount: stripe.Int64(input.UnitAmount),
		ProductData: &stripe.PriceProductDataParams{
			Name:     stripe.String(input.ProductName),
			Metadata: maps.Clone(input.Metadata),
		},
	}
	params.Context = ctx

	p, err := price.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe price",
			zap.String("product_name", input.ProductName),
			zap.Int64("unit_amount", input.UnitAmount),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create price: %w", err)
	}

	a.logger.Debug("Created Stripe price",
		zap.String("price_id", p.ID),
		zap.Int64("unit_amount", p.UnitAmount))

	return toPrice(p), nil
}

func toPrice(p *stripe.Price) *Price {
	out := &Price{
		ID:         p.ID,
		Active:     p.Active,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	return out
}

// CreateCheckoutSession creates a hosted payment-mode checkout session
func (a *StripeAdapter) CreateCheckoutSession(ctx context.Context, input CreateCheckoutSessionInput) (*CheckoutSessionOutput, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, len(input.LineItems))
	for i, li := range input.LineItems {
		lineItems[i] = &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(li.PriceID),
			Quantity: stripe.Int64(li.Quantity),
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:                lineItems,
		SuccessURL:               stripe.String(input.SuccessURL),
		CancelURL:                stripe.String(input.CancelURL),
		ExpiresAt:                stripe.Int64(input.ExpiresAt.Unix()),
		BillingAddressCollection: stripe.String("required"),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(input.ShippingCountries),
		},
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		PaymentMethodOptions: &stripe.CheckoutSessionPaymentMethodOptionsParams{
			Card: &stripe.CheckoutSessionPaymentMethodOptionsCardParams{
				RequestThreeDSecure: stripe.String("automatic"),
			},
		},
		SubmitType:          stripe.String("pay"),
		AllowPromotionCodes: stripe.Bool(false),
		InvoiceCreation: &stripe.CheckoutSessionInvoiceCreationParams{
			Enabled: stripe.Bool(true),
		},
	}
	if input.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(input.CustomerEmail)
	}
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe checkout session",
			zap.Int("line_items", len(lineItems)),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	a.logger.Info("Created Stripe checkout session",
		zap.String("session_id", s.ID))

	return &CheckoutSessionOutput{
		SessionID: s.ID,
		URL:       s.URL,
		ExpiresAt: time.Unix(s.ExpiresAt, 0),
	}, nil
}

// ExpireCheckoutSession expires an open checkout session so it can no longer be paid
func (a *StripeAdapter) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := session.Expire(sessionID, params); err != nil {
		a.logger.Warn("Failed to expire Stripe checkout session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return fmt.Errorf("stripe: failed to expire checkout session: %w", err)
	}
	return nil
}

// ConstructEvent verifies a webhook signature and decodes the event
func (a *StripeAdapter) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if a.config.WebhookSecret == "" {
		return stripe.Event{}, ErrWebhookSecretMissing
	}
	return webhook.ConstructEventWithOptions(payload, signature, a.config.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                a.config.WebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
}
