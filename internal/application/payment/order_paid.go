package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/domain/notification"
	"github.com/kctmenswear/storefront/internal/domain/order"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/cache"
	"github.com/kctmenswear/storefront/internal/infrastructure/email"
	"github.com/kctmenswear/storefront/internal/infrastructure/event"
	"github.com/kctmenswear/storefront/internal/infrastructure/job"
	"github.com/kctmenswear/storefront/internal/infrastructure/telemetry"
)

// CacheInvalidator invalidates cached values by type
type CacheInvalidator interface {
	InvalidateType(t cache.Type)
}

// OrderPaidSubscribers reacts to order.paid events
type OrderPaidSubscribers struct {
	logs    notification.EmailLogRepository
	queue   job.Enqueuer
	cache   CacheInvalidator
	replays shared.IdempotencyStore
	metrics *telemetry.StoreMetrics
	logger  *zap.Logger
}

// NewOrderPaidSubscribers creates the order.paid subscribers
func NewOrderPaidSubscribers(
	logs notification.EmailLogRepository,
	queue job.Enqueuer,
	invalidator CacheInvalidator,
	replays shared.IdempotencyStore,
	metrics *telemetry.StoreMetrics,
	logger *zap.Logger,
) *OrderPaidSubscribers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderPaidSubscribers{
		logs:    logs,
		queue:   queue,
		cache:   invalidator,
		replays: replays,
		metrics: metrics,
		logger:  logger,
	}
}

// Register subscribes the confirmation email and cache handlers on bus.
// The email handler runs at most once per event.
func (s *OrderPaidSubscribers) Register(bus shared.EventSubscriber) {
	confirmation := event.NewFuncHandler("order_confirmation_email", s.SendConfirmation, order.EventTypeOrderPaid)
	bus.Subscribe(event.NewIdempotentHandler(confirmation, s.replays, event.DefaultHandlerIdempotencyTTL, s.logger))

	if s.cache != nil {
		bus.Subscribe(event.NewFuncHandler("product_cache_invalidation", s.InvalidateProducts, order.EventTypeOrderPaid))
	}
}

// SendConfirmation writes a pending email log and queues the confirmation email
func (s *OrderPaidSubscribers) SendConfirmation(ctx context.Context, e shared.DomainEvent) error {
	paid, ok := e.(*order.OrderPaidEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	if paid.CustomerEmail == "" {
		s.logger.Warn("Paid order has no customer email, skipping confirmation",
			zap.String("order_number", paid.OrderNumber))
		return nil
	}

	entry := notification.NewEmailLog(paid.CustomerEmail, notification.EmailOrderConfirmation,
		string(email.TemplateOrderConfirmation), map[string]any{
			"order_number": paid.OrderNumber,
			"total":        paid.Total.StringFixed(2),
		})
	entry.CustomerID = paid.CustomerID
	if err := s.logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write email log: %w", err)
	}

	payload := job.OrderConfirmationPayload{
		EmailLogID: entry.ID,
		To:         paid.CustomerEmail,
		Order:      ConfirmationData(paid),
	}
	if err := s.queue.EnqueueOrderConfirmation(ctx, payload); err != nil {
		if ferr := s.logs.MarkFailed(ctx, entry.ID, err.Error()); ferr != nil {
			s.logger.Warn("Failed to mark email log failed", zap.Error(ferr))
		}
		s.metrics.RecordEmail(ctx, string(email.TemplateOrderConfirmation), "enqueue_failed")
		return fmt.Errorf("failed to queue order confirmation: %w", err)
	}

	s.metrics.RecordEmail(ctx, string(email.TemplateOrderConfirmation), "queued")
	s.logger.Info("Order confirmation queued", zap.String("order_number", paid.OrderNumber))
	return nil
}

// InvalidateProducts drops cached product listings so stock changes show up
func (s *OrderPaidSubscribers) InvalidateProducts(_ context.Context, _ shared.DomainEvent) error {
	s.cache.InvalidateType(cache.TypeProducts)
	return nil
}

// ConfirmationData renders the order confirmation template data
func ConfirmationData(e *order.OrderPaidEvent) email.OrderConfirmationData {
	lines := make([]email.OrderLine, len(e.Items))
	for i, it := range e.Items {
		lines[i] = email.OrderLine{
			Name:      it.Name,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: "$" + it.UnitPrice.StringFixed(2),
		}
	}
	name := e.CustomerName
	if name == "" {
		name = "Valued Customer"
	}
	placed := e.PlacedAt
	if placed.IsZero() {
		placed = e.OccurredAt()
	}
	return email.OrderConfirmationData{
		OrderNumber:     e.OrderNumber,
		OrderDate:       placed.Format(time.DateOnly),
		CustomerName:    name,
		Items:           lines,
		Subtotal:        "$" + e.Subtotal.StringFixed(2),
		Shipping:        "$" + e.Shipping.StringFixed(2),
		Tax:             "$" + e.Tax.StringFixed(2),
		Total:           "$" + e.Total.StringFixed(2),
		ShippingAddress: e.ShippingAddress,
	}
}
