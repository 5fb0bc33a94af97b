package telemetry

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrOutcome   = attribute.Key("outcome")
	AttrEventType = attribute.Key("event_type")
	AttrTemplate  = attribute.Key("template")
)

// StoreMetrics records storefront counters. A nil *StoreMetrics records nothing.
type StoreMetrics struct {
	checkoutSessions     metric.Int64Counter
	checkoutAmount       metric.Float64Histogram
	webhookEvents        metric.Int64Counter
	ordersPaid           metric.Int64Counter
	emailDeliveries      metric.Int64Counter
	reservationsReleased metric.Int64Counter
}

// NewStoreMetrics creates the storefront instruments on meter
func NewStoreMetrics(meter metric.Meter) (*StoreMetrics, error) {
	m := &StoreMetrics{}
	var err, e error

	m.checkoutSessions, e = meter.Int64Counter("storefront.checkout.sessions",
		metric.WithDescription("Checkout session attempts by outcome"), metric.WithUnit("{session}"))
	err = errors.Join(err, e)
	m.checkoutAmount, e = meter.Float64Histogram("storefront.checkout.amount",
		metric.WithDescription("Cart total of created checkout sessions"), metric.WithUnit("USD"),
		metric.WithExplicitBucketBoundaries(50, 100, 250, 500, 1000, 2500))
	err = errors.Join(err, e)
	m.webhookEvents, e = meter.Int64Counter("storefront.webhook.events",
		metric.WithDescription("Payment provider webhook deliveries by type and outcome"), metric.WithUnit("{event}"))
	err = errors.Join(err, e)
	m.ordersPaid, e = meter.Int64Counter("storefront.orders.paid",
		metric.WithDescription("Orders created from completed checkouts"), metric.WithUnit("{order}"))
	err = errors.Join(err, e)
	m.emailDeliveries, e = meter.Int64Counter("storefront.email.deliveries",
		metric.WithDescription("Transactional email attempts by template and outcome"), metric.WithUnit("{email}"))
	err = errors.Join(err, e)
	m.reservationsReleased, e = meter.Int64Counter("storefront.reservations.released",
		metric.WithDescription("Expired stock reservations returned to inventory"), metric.WithUnit("{reservation}"))
	err = errors.Join(err, e)

	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCheckout counts a checkout attempt; amount is recorded for created sessions only
func (m *StoreMetrics) RecordCheckout(ctx context.Context, outcome string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.checkoutSessions.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
	if outcome == "created" {
		m.checkoutAmount.Record(ctx, amount.InexactFloat64())
	}
}

// RecordWebhook counts a webhook delivery
func (m *StoreMetrics) RecordWebhook(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(eventType), AttrOutcome.String(outcome)))
}

// RecordOrderPaid counts an order created from a completed checkout
func (m *StoreMetrics) RecordOrderPaid(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersPaid.Add(ctx, 1)
}

// RecordEmail counts an email delivery attempt
func (m *StoreMetrics) RecordEmail(ctx context.Context, template, outcome string) {
	if m == nil {
		return
	}
	m.emailDeliveries.Add(ctx, 1, metric.WithAttributes(AttrTemplate.String(template), AttrOutcome.String(outcome)))
}

// RecordReservationsReleased counts released reservations
func (m *StoreMetrics) RecordReservationsReleased(ctx context.Context, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.reservationsReleased.Add(ctx, n)
}
