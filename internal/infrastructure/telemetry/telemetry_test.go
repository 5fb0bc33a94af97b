package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

func TestSetup_Disabled(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, config.TelemetryConfig{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.Tracer.IsEnabled())
	assert.NotNil(t, p.Tracer.Tracer("x"))
	assert.NotNil(t, p.Metrics)

	base := zap.NewNop()
	assert.Same(t, base, p.Logs.Bridge(base))

	p.Metrics.RecordCheckout(ctx, "created", decimal.NewFromInt(10))
	require.NoError(t, p.Shutdown(ctx))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumFor(t *testing.T, data metricdata.Aggregation, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok)
	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestStoreMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewStoreMetrics(mp.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordCheckout(ctx, "created", decimal.RequireFromString("249.99"))
	m.RecordCheckout(ctx, "rejected", decimal.Zero)
	m.RecordWebhook(ctx, "checkout.session.completed", "completed")
	m.RecordWebhook(ctx, "checkout.session.completed", "duplicate")
	m.RecordOrderPaid(ctx)
	m.RecordEmail(ctx, "order_confirmation", "sent")
	m.RecordReservationsReleased(ctx, 3)
	m.RecordReservationsReleased(ctx, 0)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, got["storefront.checkout.sessions"]))
	assert.Equal(t, int64(1), sumFor(t, got["storefront.checkout.sessions"], AttrOutcome.String("rejected")))
	assert.Equal(t, int64(1), sumFor(t, got["storefront.webhook.events"],
		AttrEventType.String("checkout.session.completed"), AttrOutcome.String("duplicate")))
	assert.Equal(t, int64(1), sumFor(t, got["storefront.orders.paid"]))
	assert.Equal(t, int64(1), sumFor(t, got["storefront.email.deliveries"]))
	assert.Equal(t, int64(3), sumFor(t, got["storefront.reservations.released"]))

	hist, ok := got["storefront.checkout.amount"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 249.99, hist.DataPoints[0].Sum, 0.001)
}

func TestStoreMetrics_NilIsNoop(t *testing.T) {
	var m *StoreMetrics
	assert.NotPanics(t, func() {
		m.RecordCheckout(context.Background(), "created", decimal.NewFromInt(1))
		m.RecordWebhook(context.Background(), "x", "y")
		m.RecordEmail(context.Background(), "x", "y")
		m.RecordOrderPaid(context.Background())
		m.RecordReservationsReleased(context.Background(), 1)
	})
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	ctx, span := tp.Tracer(TracerName).Start(context.Background(), "parent")
	SetAttributes(span, AttrOrderNumber, "ORD-1", AttrItemCount, 2, "ignored")
	RecordError(span, errors.New("card declined"))
	span.End()

	assert.NotEmpty(t, TraceID(ctx))
	assert.Empty(t, TraceID(context.Background()))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "card declined", ended[0].Status().Description)
	assert.Contains(t, ended[0].Attributes(), attribute.String(AttrOrderNumber, "ORD-1"))
	assert.Contains(t, ended[0].Attributes(), attribute.Int(AttrItemCount, 2))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestDBTracing_Register(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	tracing := NewDBTracing(time.Nanosecond, zaptest.NewLogger(t))
	require.NoError(t, tracing.Register(db))

	var n int
	require.NoError(t, db.Raw("SELECT 1").Scan(&n).Error)
	assert.Equal(t, 1, n)
}

func TestStartServiceSpan_UsesGlobalProvider(t *testing.T) {
	ctx, span := StartServiceSpan(context.Background(), "checkout", "create", AttrItemCount, 1)
	defer span.End()
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid(), "no global provider is installed in tests")
}

func TestProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(config.TelemetryConfig{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())

	tp, err := NewTracerProvider(context.Background(), config.TelemetryConfig{}, zap.NewNop())
	require.NoError(t, err)
	tp.EnableSpanProfiles(p)
	assert.False(t, tp.IsEnabled())
}

func TestProfiler_RequiresServer(t *testing.T) {
	_, err := NewProfiler(config.TelemetryConfig{ProfilingEnabled: true, ServiceName: "test"}, zap.NewNop())
	assert.ErrorContains(t, err, "server address is required")
}
