package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

// DefaultWebhookTolerance is the maximum age of a signed webhook payload
const DefaultWebhookTolerance = 5 * time.Minute

// StripeConfig holds configuration for the Stripe integration
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// WebhookSecret is the secret for verifying webhook signatures
	WebhookSecret string

	// WebhookTolerance bounds the signed timestamp of a webhook
	WebhookTolerance time.Duration

	// Currency is the ISO currency of ad-hoc prices
	Currency string
}

// NewStripeConfig builds a StripeConfig from application configuration
func NewStripeConfig(cfg config.StripeConfig) *StripeConfig {
	c := &StripeConfig{
		SecretKey:        cfg.SecretKey,
		WebhookSecret:    cfg.WebhookSecret,
		WebhookTolerance: cfg.WebhookTolerance,
		Currency:         strings.ToLower(cfg.Currency),
	}
	if c.WebhookTolerance <= 0 {
		c.WebhookTolerance = DefaultWebhookTolerance
	}
	if c.Currency == "" {
		c.Currency = string(stripe.CurrencyUSD)
	}
	return c
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") && !strings.HasPrefix(c.SecretKey, "rk_") {
		return fmt.Errorf("stripe: secret key must start with sk_ or rk_")
	}
	if c.WebhookSecret != "" && !strings.HasPrefix(c.WebhookSecret, "whsec_") {
		return fmt.Errorf("stripe: webhook secret must start with whsec_")
	}
	return nil
}

// IsTestMode reports whether the key is a test-mode key
func (c *StripeConfig) IsTestMode() bool {
	return strings.Contains(c.SecretKey, "_test_")
}

// InitStripeClient initializes the Stripe client with the configured API key
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}
