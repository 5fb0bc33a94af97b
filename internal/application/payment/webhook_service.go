// Package payment processes Stripe webhook deliveries into orders.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/domain/customer"
	"github.com/kctmenswear/storefront/internal/domain/order"
	"github.com/kctmenswear/storefront/internal/domain/payment"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/domain/shared/valueobject"
	"github.com/kctmenswear/storefront/internal/infrastructure/telemetry"
)

// EventReplayTTL is how long a processed Stripe event ID is remembered
const EventReplayTTL = 24 * time.Hour

// Webhook errors
var (
	ErrInvalidSignature = shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")
	ErrDuplicateEvent   = shared.NewDomainError("DUPLICATE_EVENT", "Event already processed")
)

// Metadata keys written on checkout sessions
const (
	MetadataOrderDetails  = "order_details"
	MetadataSessionID     = "session_id"
	MetadataUserID        = "user_id"
	MetadataCustomerEmail = "customer_email"
)

// EventVerifier verifies and decodes a signed webhook payload
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// WebhookService handles Stripe webhook events
type WebhookService struct {
	verifier     EventVerifier
	orders       order.Repository
	sessions     order.CheckoutSessionRepository
	reservations order.ReservationRepository
	customers    customer.Repository
	webhookLogs  payment.WebhookLogRepository
	replays      shared.IdempotencyStore
	events       shared.EventPublisher
	metrics      *telemetry.StoreMetrics
	logger       *zap.Logger
	now          func() time.Time
}

// WebhookServiceConfig contains the dependencies of WebhookService
type WebhookServiceConfig struct {
	Verifier     EventVerifier
	Orders       order.Repository
	Sessions     order.CheckoutSessionRepository
	Reservations order.ReservationRepository
	Customers    customer.Repository
	WebhookLogs  payment.WebhookLogRepository
	Replays      shared.IdempotencyStore
	Events       shared.EventPublisher
	Metrics      *telemetry.StoreMetrics
	Logger       *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		verifier:     cfg.Verifier,
		orders:       cfg.Orders,
		sessions:     cfg.Sessions,
		reservations: cfg.Reservations,
		customers:    cfg.Customers,
		webhookLogs:  cfg.WebhookLogs,
		replays:      cfg.Replays,
		events:       cfg.Events,
		metrics:      cfg.Metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies, de-duplicates and dispatches a Stripe webhook.
// A failed event forgets its replay key so Stripe's retry is processed again.
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.verifier.ConstructEvent(payload, signature)
	if err != nil {
		s.logger.Warn("Failed to verify webhook signature", zap.Error(err))
		s.metrics.RecordWebhook(ctx, "unknown", "invalid_signature")
		return nil, shared.WrapDomainError(ErrInvalidSignature.Code, ErrInvalidSignature.Message, err)
	}

	eventType := string(event.Type)
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "process_webhook",
		telemetry.AttrWebhookEventID, event.ID,
		telemetry.AttrWebhookType, eventType)
	defer span.End()

	log := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", eventType))

	replayKey := "stripe:event:" + event.ID
	isNew, err := s.replays.MarkProcessed(ctx, replayKey, EventReplayTTL)
	if err != nil {
		log.Warn("Replay check failed, processing anyway", zap.Error(err))
	} else if !isNew {
		log.Info("Duplicate webhook event rejected")
		s.metrics.RecordWebhook(ctx, eventType, "duplicate")
		return nil, ErrDuplicateEvent
	}

	entry := payment.NewWebhookLog(event.ID, eventType, payload)
	if err := s.webhookLogs.Create(ctx, entry); err != nil {
		log.Warn("Failed to write webhook log", zap.Error(err))
		entry = nil
	}

	log.Info("Processing Stripe webhook event")

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: eventType,
		Processed: true,
	}

	switch eventType {
	case "checkout.session.completed":
		result.Message, err = s.handleCheckoutCompleted(ctx, event)
	case "payment_intent.succeeded":
		err = s.handlePaymentSucceeded(ctx, event)
	case "payment_intent.payment_failed":
		err = s.handlePaymentFailed(ctx, event)
	case "customer.created":
		err = s.handleCustomerCreated(ctx, event)
	case "charge.dispute.created":
		err = s.handleDisputeCreated(ctx, event)
	default:
		log.Debug("Unhandled webhook event type")
		result.Message = "Event type not handled"
	}

	if err != nil {
		log.Error("Failed to process webhook event", zap.Error(err))
		telemetry.RecordError(span, err)
		s.finishLog(ctx, entry, err)
		if ferr := s.replays.Forget(ctx, replayKey); ferr != nil {
			log.Warn("Failed to forget replay key", zap.Error(ferr))
		}
		s.metrics.RecordWebhook(ctx, eventType, "failed")
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}

	s.finishLog(ctx, entry, nil)
	s.metrics.RecordWebhook(ctx, eventType, "completed")
	return result, nil
}

func (s *WebhookService) finishLog(ctx context.Context, entry *payment.WebhookLog, cause error) {
	if entry == nil {
		return
	}
	if cause != nil {
		entry.Fail(cause)
	} else {
		entry.Complete()
	}
	if err := s.webhookLogs.Finish(ctx, entry); err != nil {
		s.logger.Warn("Failed to update webhook log",
			zap.String("event_id", entry.EventID),
			zap.Error(err))
	}
}

// handleCheckoutCompleted turns a paid checkout session into an order.
// Reservation finalization and session completion also run when the order
// already exists, so a retried event can finish an interrupted run.
func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) (string, error) {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return "", fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}
	if cs.ID == "" {
		return "", shared.NewDomainError("INVALID_SESSION", "Invalid checkout session data")
	}
	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logger.Info("Checkout session not paid yet, skipping",
			zap.String("session_id", cs.ID),
			zap.String("payment_status", string(cs.PaymentStatus)))
		return "Session not paid", nil
	}

	record, err := s.sessions.FindByStripeSessionID(ctx, cs.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return "", fmt.Errorf("failed to load checkout session: %w", err)
	}

	existing, err := s.orders.FindByCheckoutSessionID(ctx, cs.ID)
	switch {
	case err == nil:
		s.logger.Info("Order already exists for checkout session",
			zap.String("session_id", cs.ID),
			zap.String("order_number", existing.OrderNumber))
	case errors.Is(err, shared.ErrNotFound):
		if err := s.createOrder(ctx, &cs, record); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("failed to look up order: %w", err)
	}

	sessionKey := cs.Metadata[MetadataSessionID]
	if sessionKey == "" && record != nil {
		sessionKey = record.ID.String()
	}
	if sessionKey != "" {
		n, err := s.reservations.Finalize(ctx, sessionKey)
		if err != nil {
			return "", fmt.Errorf("failed to finalize reservations: %w", err)
		}
		s.logger.Debug("Reservations finalized",
			zap.String("session_key", sessionKey),
			zap.Int64("count", n))
	}

	if record != nil {
		if err := s.sessions.MarkCompleted(ctx, cs.ID); err != nil && !errors.Is(err, shared.ErrNotFound) {
			return "", fmt.Errorf("failed to complete checkout session: %w", err)
		}
	}
	return "", nil
}

func (s *WebhookService) createOrder(ctx context.Context, cs *stripe.CheckoutSession, record *order.CheckoutSession) error {
	pc := order.PaidCheckout{
		StripeSessionID: cs.ID,
		CustomerEmail:   cs.CustomerEmail,
		Totals:          sessionTotals(cs),
	}
	if cs.PaymentIntent != nil {
		pc.StripePaymentIntentID = cs.PaymentIntent.ID
	}
	if d := cs.CustomerDetails; d != nil {
		if d.Email != "" {
			pc.CustomerEmail = d.Email
		}
		pc.CustomerName = d.Name
		pc.Phone = d.Phone
	}
	if pc.CustomerEmail == "" {
		pc.CustomerEmail = cs.Metadata[MetadataCustomerEmail]
	}
	if pc.CustomerEmail == "" && record != nil {
		pc.CustomerEmail = record.CustomerEmail
	}
	pc.ShippingAddress = shippingAddress(cs)

	items, err := sessionItems(cs, record)
	if err != nil {
		return err
	}
	pc.Items = items
	pc.CustomerID = s.resolveCustomer(ctx, pc)

	o, err := order.NewPaidOrder(pc, s.now())
	if err != nil {
		return err
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created from checkout session",
		zap.String("order_number", o.OrderNumber),
		zap.String("session_id", cs.ID),
		zap.String("total", o.Totals.Total.StringFixed(2)))
	s.metrics.RecordOrderPaid(ctx)

	events := o.GetDomainEvents()
	o.ClearDomainEvents()
	if s.events != nil && len(events) > 0 {
		if err := s.events.Publish(ctx, events...); err != nil {
			// The order is stored; subscribers are best effort.
			s.logger.Warn("Failed to publish order events",
				zap.String("order_number", o.OrderNumber),
				zap.Error(err))
		}
	}
	return nil
}

// resolveCustomer links the order to a customer, creating one for a new email.
// Failures leave the order unlinked.
func (s *WebhookService) resolveCustomer(ctx context.Context, pc order.PaidCheckout) *uuid.UUID {
	if s.customers == nil || pc.CustomerEmail == "" {
		return nil
	}
	c, err := s.customers.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(pc.CustomerEmail)))
	if err == nil {
		return &c.ID
	}
	if !errors.Is(err, shared.ErrNotFound) {
		s.logger.Warn("Customer lookup failed", zap.Error(err))
		return nil
	}
	c, err = customer.NewCustomer(pc.CustomerEmail, pc.CustomerName, pc.Phone, "")
	if err != nil {
		return nil
	}
	if err := s.customers.Create(ctx, c); err != nil {
		s.logger.Warn("Failed to create customer from checkout", zap.Error(err))
		return nil
	}
	return &c.ID
}

func sessionTotals(cs *stripe.CheckoutSession) order.Totals {
	var tax, shipping int64
	if cs.TotalDetails != nil {
		tax = cs.TotalDetails.AmountTax
		shipping = cs.TotalDetails.AmountShipping
	}
	return order.TotalsFromCents(cs.AmountSubtotal, tax, shipping, cs.AmountTotal, string(cs.Currency))
}

func shippingAddress(cs *stripe.CheckoutSession) *valueobject.Address {
	var a *stripe.Address
	switch {
	case cs.ShippingDetails != nil && cs.ShippingDetails.Address != nil:
		a = cs.ShippingDetails.Address
	case cs.CustomerDetails != nil && cs.CustomerDetails.Address != nil:
		a = cs.CustomerDetails.Address
	default:
		return nil
	}
	addr := valueobject.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
	if addr.IsEmpty() {
		return nil
	}
	return &addr
}

// sessionItems prefers the stored checkout session, then the metadata copy
func sessionItems(cs *stripe.CheckoutSession, record *order.CheckoutSession) ([]order.Item, error) {
	if record != nil && len(record.Items) > 0 {
		return record.Items, nil
	}
	raw := cs.Metadata[MetadataOrderDetails]
	if raw == "" {
		return nil, nil
	}
	var items []order.Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode order details: %w", err)
	}
	return items, nil
}

func (s *WebhookService) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	o, err := s.orders.FindByPaymentIntentID(ctx, pi.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// The checkout.session.completed event may not have arrived yet.
			s.logger.Info("No order for payment intent yet", zap.String("payment_intent_id", pi.ID))
			return nil
		}
		return fmt.Errorf("failed to find order: %w", err)
	}

	o.MarkPaid()
	if err := s.orders.Save(ctx, o); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	s.logger.Info("Payment succeeded",
		zap.String("order_number", o.OrderNumber),
		zap.String("payment_intent_id", pi.ID))
	return nil
}

func (s *WebhookService) handlePaymentFailed(ctx context.Context, event stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	o, err := s.orders.FindByPaymentIntentID(ctx, pi.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Info("No order for failed payment intent", zap.String("payment_intent_id", pi.ID))
			return nil
		}
		return fmt.Errorf("failed to find order: %w", err)
	}

	reason := ""
	if pi.LastPaymentError != nil {
		reason = pi.LastPaymentError.Msg
	}
	o.MarkPaymentFailed(reason)
	if err := s.orders.Save(ctx, o); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	s.logger.Warn("Payment failed",
		zap.String("order_number", o.OrderNumber),
		zap.String("payment_intent_id", pi.ID),
		zap.String("reason", o.PaymentError))
	return nil
}

func (s *WebhookService) handleCustomerCreated(ctx context.Context, event stripe.Event) error {
	var sc stripe.Customer
	if err := json.Unmarshal(event.Data.Raw, &sc); err != nil {
		return fmt.Errorf("failed to unmarshal customer: %w", err)
	}
	if sc.Email == "" {
		s.logger.Debug("Stripe customer has no email, skipping", zap.String("customer_id", sc.ID))
		return nil
	}

	_, err := s.customers.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(sc.Email)))
	if err == nil {
		return nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("failed to look up customer: %w", err)
	}

	c, err := customer.NewCustomer(sc.Email, sc.Name, sc.Phone, sc.ID)
	if err != nil {
		s.logger.Warn("Ignoring Stripe customer with invalid email",
			zap.String("customer_id", sc.ID),
			zap.Error(err))
		return nil
	}
	if err := s.customers.Create(ctx, c); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}
	s.logger.Info("Customer created from Stripe", zap.String("customer_id", sc.ID))
	return nil
}

func (s *WebhookService) handleDisputeCreated(ctx context.Context, event stripe.Event) error {
	var d stripe.Dispute
	if err := json.Unmarshal(event.Data.Raw, &d); err != nil {
		return fmt.Errorf("failed to unmarshal dispute: %w", err)
	}

	piID := ""
	if d.PaymentIntent != nil {
		piID = d.PaymentIntent.ID
	}
	s.logger.Warn("Charge dispute created",
		zap.String("dispute_id", d.ID),
		zap.String("payment_intent_id", piID),
		zap.String("reason", string(d.Reason)),
		zap.Int64("amount", d.Amount))
	if piID == "" {
		return nil
	}

	o, err := s.orders.FindByPaymentIntentID(ctx, piID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to find order: %w", err)
	}
	o.MarkDisputed()
	if err := s.orders.Save(ctx, o); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}
