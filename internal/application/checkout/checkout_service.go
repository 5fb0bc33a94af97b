// Package checkout validates carts, holds inventory and opens hosted
// Stripe checkout sessions.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/application/payment"
	"github.com/kctmenswear/storefront/internal/domain/catalog"
	"github.com/kctmenswear/storefront/internal/domain/order"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/domain/shared/valueobject"
	"github.com/kctmenswear/storefront/internal/infrastructure/billing"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
	"github.com/kctmenswear/storefront/internal/infrastructure/telemetry"
)

// Stripe rejects metadata values longer than this
const metadataValueLimit = 500

// ErrCartEmpty is returned for a checkout without items
var ErrCartEmpty = shared.NewDomainError("CART_EMPTY", "Please add items to your cart before checkout.")

// Gateway is the subset of the Stripe adapter used by checkout
type Gateway interface {
	GetPrice(ctx context.Context, priceID string) (*billing.Price, error)
	CreatePrice(ctx context.Context, input billing.CreatePriceInput) (*billing.Price, error)
	CreateCheckoutSession(ctx context.Context, input billing.CreateCheckoutSessionInput) (*billing.CheckoutSessionOutput, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

// CartItem is one requested line. Either StripePriceID or VariantID is required.
type CartItem struct {
	StripePriceID string `json:"stripe_price_id,omitempty"`
	VariantID     string `json:"variant_id,omitempty"`
	Quantity      int    `json:"quantity"`
}

// Request is a checkout request
type Request struct {
	Items         []CartItem
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Origin        string
	UserID        *uuid.UUID
}

// Result is returned for a created checkout session
type Result struct {
	URL               string `json:"url"`
	SessionID         string `json:"session_id"`
	CheckoutSessionID string `json:"checkout_session_id"`
}

// Service creates checkout sessions
type Service struct {
	gateway      Gateway
	variants     catalog.VariantRepository
	reservations order.ReservationRepository
	sessions     order.CheckoutSessionRepository
	cfg          config.CheckoutConfig
	allowlist    HostAllowlist
	validate     *validator.Validate
	metrics      *telemetry.StoreMetrics
	logger       *zap.Logger
	now          func() time.Time
}

// ServiceConfig contains the dependencies of Service
type ServiceConfig struct {
	Gateway      Gateway
	Variants     catalog.VariantRepository
	Reservations order.ReservationRepository
	Sessions     order.CheckoutSessionRepository
	Checkout     config.CheckoutConfig
	Metrics      *telemetry.StoreMetrics
	Logger       *zap.Logger
}

// NewService creates a checkout Service
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gateway:      cfg.Gateway,
		variants:     cfg.Variants,
		reservations: cfg.Reservations,
		sessions:     cfg.Sessions,
		cfg:          cfg.Checkout,
		allowlist:    HostAllowlist(cfg.Checkout.AllowedHosts),
		validate:     validator.New(),
		metrics:      cfg.Metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// resolvedItem is a validated cart line with its price
type resolvedItem struct {
	item    order.Item
	variant *catalog.Variant
	cents   int64
	adHoc   bool // priced from the catalog; needs a one-off Stripe price
}

// CreateCheckout validates the cart, reserves stock and opens a Stripe session.
// Reservations are released when any later step fails.
func (s *Service) CreateCheckout(ctx context.Context, req Request) (*Result, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "create_checkout",
		telemetry.AttrItemCount, len(req.Items))
	defer span.End()

	result, total, err := s.createCheckout(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordCheckout(ctx, "rejected", decimal.Zero)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.AttrCheckoutSession, result.SessionID)
	s.metrics.RecordCheckout(ctx, "created", total)
	return result, nil
}

func (s *Service) createCheckout(ctx context.Context, req Request) (*Result, decimal.Decimal, error) {
	if len(req.Items) == 0 {
		return nil, decimal.Zero, ErrCartEmpty
	}
	if len(req.Items) > s.cfg.MaxItems {
		return nil, decimal.Zero, shared.NewDomainError("INVALID_CART",
			fmt.Sprintf("Too many items in cart (max %d)", s.cfg.MaxItems))
	}

	email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	if email != "" {
		if err := s.validate.Var(email, "email"); err != nil {
			return nil, decimal.Zero, shared.NewDomainError("INVALID_EMAIL", "Invalid email address")
		}
	}

	successURL, cancelURL, err := s.redirectURLs(req)
	if err != nil {
		return nil, decimal.Zero, err
	}

	items := make([]resolvedItem, 0, len(req.Items))
	total := decimal.Zero
	for i, ci := range req.Items {
		ri, err := s.resolveItem(ctx, i+1, ci)
		if err != nil {
			return nil, decimal.Zero, err
		}
		items = append(items, *ri)
		total = total.Add(ri.item.LineTotal())
	}
	if total.GreaterThan(decimal.NewFromFloat(s.cfg.MaxCartTotal)) {
		return nil, decimal.Zero, shared.NewDomainError("INVALID_TOTAL", "Order total exceeds maximum allowed amount")
	}

	sessionKey := uuid.New()
	now := s.now()
	if err := s.reserve(ctx, sessionKey.String(), items, now.Add(s.cfg.ReservationTTL)); err != nil {
		return nil, decimal.Zero, err
	}

	result, err := s.openSession(ctx, req, sessionKey, email, successURL, cancelURL, items, now)
	if err != nil {
		s.release(sessionKey.String())
		return nil, decimal.Zero, err
	}

	s.logger.Info("Checkout session created",
		zap.String("session_id", result.SessionID),
		zap.String("checkout_session_id", result.CheckoutSessionID),
		zap.Int("items", len(items)),
		zap.String("total", total.StringFixed(2)))
	return result, total, nil
}

func (s *Service) redirectURLs(req Request) (string, string, error) {
	origin := strings.TrimRight(strings.TrimSpace(req.Origin), "/")
	if origin == "" || !s.allowlist.Allows(origin) {
		origin = DefaultOrigin
	}
	defSuccess, defCancel := BuildRedirectURLs(origin)

	success, cancel := defSuccess, defCancel
	var err error
	if req.SuccessURL != "" {
		if success, err = s.allowlist.Validate(req.SuccessURL, "success_url"); err != nil {
			return "", "", err
		}
	}
	if req.CancelURL != "" {
		if cancel, err = s.allowlist.Validate(req.CancelURL, "cancel_url"); err != nil {
			return "", "", err
		}
	}
	return success, cancel, nil
}

func (s *Service) resolveItem(ctx context.Context, pos int, ci CartItem) (*resolvedItem, error) {
	if ci.Quantity < 1 || ci.Quantity > s.cfg.MaxQuantity {
		return nil, shared.NewDomainError("INVALID_QUANTITY",
			fmt.Sprintf("Invalid quantity for item %d: must be between 1 and %d", pos, s.cfg.MaxQuantity))
	}

	switch {
	case ci.StripePriceID != "":
		return s.resolveStripePrice(ctx, pos, ci)
	case ci.VariantID != "":
		v, err := s.findVariant(ctx, pos, ci.VariantID)
		if err != nil {
			return nil, err
		}
		if !v.PriceInRange() {
			return nil, shared.NewDomainError("INVALID_PRICE", fmt.Sprintf("Invalid price for item %d", pos))
		}
		return &resolvedItem{
			item:    itemFromVariant(v, ci.Quantity),
			variant: v,
			cents:   valueobject.Dollars(v.Price).Cents(),
			adHoc:   true,
		}, nil
	default:
		return nil, shared.NewDomainError("INVALID_ITEM",
			fmt.Sprintf("Item %d must have either stripe_price_id or variant_id", pos))
	}
}

func (s *Service) resolveStripePrice(ctx context.Context, pos int, ci CartItem) (*resolvedItem, error) {
	if !strings.HasPrefix(ci.StripePriceID, "price_") {
		return nil, shared.NewDomainError("INVALID_PRICE", fmt.Sprintf("Invalid Stripe price ID for item %d", pos))
	}
	p, err := s.gateway.GetPrice(ctx, ci.StripePriceID)
	if err != nil {
		return nil, shared.WrapDomainError("INVALID_PRICE", fmt.Sprintf("Invalid price for item %d", pos), err)
	}
	if !p.Active {
		return nil, shared.NewDomainError("INVALID_PRICE", fmt.Sprintf("Price %s is not active", p.ID))
	}

	ri := &resolvedItem{
		item: order.Item{
			StripePriceID: p.ID,
			Name:          p.ID,
			Quantity:      ci.Quantity,
			UnitPrice:     valueobject.FromCents(p.UnitAmount).Amount(),
		},
		cents: p.UnitAmount,
	}

	// Catalog prices still hold inventory when the variant is known.
	var v *catalog.Variant
	if ci.VariantID != "" {
		if v, err = s.findVariant(ctx, pos, ci.VariantID); err != nil {
			return nil, err
		}
	} else {
		v, err = s.variants.FindByStripePriceID(ctx, p.ID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("failed to load variant for price: %w", err)
		}
	}
	if v != nil {
		ri.variant = v
		vi := itemFromVariant(v, ci.Quantity)
		vi.StripePriceID = p.ID
		vi.UnitPrice = ri.item.UnitPrice
		ri.item = vi
	}
	return ri, nil
}

func (s *Service) findVariant(ctx context.Context, pos int, rawID string) (*catalog.Variant, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", fmt.Sprintf("Invalid variant ID for item %d", pos))
	}
	v, err := s.variants.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("INVALID_VARIANT", fmt.Sprintf("Product variant not found for item %d", pos))
		}
		return nil, fmt.Errorf("failed to load variant: %w", err)
	}
	return v, nil
}

func itemFromVariant(v *catalog.Variant, qty int) order.Item {
	variantID := v.ID
	productID := v.ProductID
	return order.Item{
		ProductID:     &productID,
		VariantID:     &variantID,
		StripePriceID: v.StripePriceID,
		Name:          v.DisplayName(),
		SKU:           v.SKU,
		Size:          v.Size,
		Quantity:      qty,
		UnitPrice:     v.Price,
	}
}

func (s *Service) reserve(ctx context.Context, sessionKey string, items []resolvedItem, expiresAt time.Time) error {
	reqs := make([]order.ReservationRequest, 0, len(items))
	for _, ri := range items {
		if ri.variant == nil {
			continue
		}
		reqs = append(reqs, order.ReservationRequest{
			VariantID: ri.variant.ID,
			Quantity:  ri.item.Quantity,
			Name:      ri.item.Name,
		})
	}
	if len(reqs) == 0 {
		return nil
	}

	err := s.reservations.Reserve(ctx, sessionKey, reqs, expiresAt)
	if err == nil {
		return nil
	}
	var short *order.InsufficientStockError
	if errors.As(err, &short) {
		s.logger.Info("Checkout rejected for insufficient stock",
			zap.String("item", short.Name),
			zap.Int("requested", short.Requested),
			zap.Int("available", short.Available))
		return shared.WrapDomainError(shared.ErrInsufficientStock.Code, short.Error(), err)
	}
	if errors.Is(err, order.ErrVariantNotFound) {
		return shared.WrapDomainError("INVALID_VARIANT", "A product in your cart is no longer available", err)
	}
	if _, ok := shared.AsDomainError(err); ok {
		return err
	}
	return fmt.Errorf("failed to reserve inventory: %w", err)
}

// release runs on a fresh context so a cancelled request still frees stock
func (s *Service) release(sessionKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := s.reservations.Release(ctx, sessionKey)
	if err != nil {
		s.logger.Error("Failed to release reservations",
			zap.String("session_key", sessionKey),
			zap.Error(err))
		return
	}
	s.logger.Info("Reservations released after failed checkout",
		zap.String("session_key", sessionKey),
		zap.Int64("count", n))
}

func (s *Service) openSession(
	ctx context.Context,
	req Request,
	sessionKey uuid.UUID,
	email, successURL, cancelURL string,
	items []resolvedItem,
	now time.Time,
) (*Result, error) {
	lineItems := make([]billing.LineItem, len(items))
	orderItems := make([]order.Item, len(items))
	for i, ri := range items {
		priceID := ri.item.StripePriceID
		if ri.adHoc {
			p, err := s.adHocPrice(ctx, ri)
			if err != nil {
				return nil, err
			}
			priceID = p.ID
		}
		lineItems[i] = billing.LineItem{PriceID: priceID, Quantity: int64(ri.item.Quantity)}
		orderItems[i] = ri.item
		orderItems[i].StripePriceID = priceID
	}

	metadata := map[string]string{
		payment.MetadataSessionID:     sessionKey.String(),
		payment.MetadataCustomerEmail: email,
		payment.MetadataUserID:        "",
	}
	if req.UserID != nil {
		metadata[payment.MetadataUserID] = req.UserID.String()
	}
	if details, err := json.Marshal(orderItems); err == nil && len(details) <= metadataValueLimit {
		metadata[payment.MetadataOrderDetails] = string(details)
	}

	out, err := s.gateway.CreateCheckoutSession(ctx, billing.CreateCheckoutSessionInput{
		LineItems:         lineItems,
		CustomerEmail:     email,
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		ExpiresAt:         now.Add(s.cfg.SessionTTL),
		ShippingCountries: s.cfg.ShippingCountries,
		Metadata:          metadata,
	})
	if err != nil {
		return nil, shared.WrapDomainError("CHECKOUT_FAILED", "Unable to start checkout", err)
	}

	record := order.NewCheckoutSession(sessionKey, out.SessionID, req.UserID, email, orderItems, out.ExpiresAt)
	if err := s.sessions.Create(ctx, record); err != nil {
		if xerr := s.gateway.ExpireCheckoutSession(ctx, out.SessionID); xerr != nil {
			s.logger.Warn("Failed to expire orphaned checkout session",
				zap.String("session_id", out.SessionID),
				zap.Error(xerr))
		}
		return nil, fmt.Errorf("failed to save checkout session: %w", err)
	}

	return &Result{
		URL:               out.URL,
		SessionID:         out.SessionID,
		CheckoutSessionID: sessionKey.String(),
	}, nil
}

// adHocPrice creates a one-off Stripe price for a catalog variant
func (s *Service) adHocPrice(ctx context.Context, ri resolvedItem) (*billing.Price, error) {
	meta := map[string]string{"sku": ri.item.SKU}
	if ri.item.ProductID != nil {
		meta["product_id"] = ri.item.ProductID.String()
	}
	if ri.item.VariantID != nil {
		meta["variant_id"] = ri.item.VariantID.String()
	}
	p, err := s.gateway.CreatePrice(ctx, billing.CreatePriceInput{
		ProductName: truncate(ri.item.Name, 100),
		UnitAmount:  ri.cents,
		Metadata:    meta,
	})
	if err != nil {
		return nil, shared.WrapDomainError("CHECKOUT_FAILED", "Unable to price cart item", err)
	}
	return p, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
