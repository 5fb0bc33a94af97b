package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/application/payment"
	"github.com/kctmenswear/storefront/internal/application/verification"
	"github.com/kctmenswear/storefront/internal/domain/order"
	"github.com/kctmenswear/storefront/internal/infrastructure/auth"
	"github.com/kctmenswear/storefront/internal/infrastructure/billing"
	"github.com/kctmenswear/storefront/internal/infrastructure/cache"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
	"github.com/kctmenswear/storefront/internal/infrastructure/email"
	"github.com/kctmenswear/storefront/internal/infrastructure/event"
	"github.com/kctmenswear/storefront/internal/infrastructure/job"
	"github.com/kctmenswear/storefront/internal/infrastructure/persistence"
	"github.com/kctmenswear/storefront/tests/testutil"
)

const webhookSecret = "whsec_integration"

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

func TestReservations_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	tdb := NewSharedTestDB(t)
	ctx := testutil.ContextWithTimeout(t, time.Minute)
	repo := persistence.NewGormReservationRepository(tdb.DB)
	variantID := tdb.SeedVariant("Navy Suit", "299.99", 5)

	const buyers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
		short    int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Reserve(ctx, uuid.NewString(), []order.ReservationRequest{
				{VariantID: variantID, Quantity: 1, Name: "Navy Suit"},
			}, time.Now().Add(15*time.Minute))

			mu.Lock()
			defer mu.Unlock()
			var insufficient *order.InsufficientStockError
			switch {
			case err == nil:
				reserved++
			case errors.As(err, &insufficient):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, reserved)
	assert.Equal(t, buyers-5, short)
}

func TestReservations_ExpiredReleaseFreesStock(t *testing.T) {
	tdb := NewSharedTestDB(t)
	ctx := testutil.ContextWithTimeout(t, time.Minute)
	repo := persistence.NewGormReservationRepository(tdb.DB)
	variantID := tdb.SeedVariant("Tuxedo", "449.00", 1)
	req := []order.ReservationRequest{{VariantID: variantID, Quantity: 1, Name: "Tuxedo"}}

	require.NoError(t, repo.Reserve(ctx, "abandoned", req, time.Now().Add(time.Second)))
	var insufficient *order.InsufficientStockError
	require.ErrorAs(t, repo.Reserve(ctx, "second", req, time.Now().Add(time.Minute)), &insufficient)

	released, err := repo.ReleaseExpired(ctx, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)
	require.NoError(t, repo.Reserve(ctx, "second", req, time.Now().Add(time.Minute)))
}

func TestWebhook_PaidCheckoutCreatesOrder(t *testing.T) {
	tdb := NewSharedTestDB(t)
	ctx := testutil.ContextWithTimeout(t, time.Minute)
	variantID := tdb.SeedVariant("Charcoal Suit", "299.99", 3)

	reservations := persistence.NewGormReservationRepository(tdb.DB)
	sessions := persistence.NewGormCheckoutSessionRepository(tdb.DB)

	sessionID := uuid.New()
	items := []order.Item{{
		VariantID: &variantID,
		Name:      "Charcoal Suit",
		Size:      "40R",
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("299.99"),
	}}
	require.NoError(t, reservations.Reserve(ctx, sessionID.String(), []order.ReservationRequest{
		{VariantID: variantID, Quantity: 2, Name: "Charcoal Suit"},
	}, time.Now().Add(15*time.Minute)))
	require.NoError(t, sessions.Create(ctx, order.NewCheckoutSession(
		sessionID, "cs_int_1", nil, "buyer@example.com", items, time.Now().Add(15*time.Minute))))

	adapter, err := billing.NewStripeAdapter(&billing.StripeConfig{
		SecretKey:        "sk_test_integration",
		WebhookSecret:    webhookSecret,
		WebhookTolerance: billing.DefaultWebhookTolerance,
		Currency:         "usd",
	}, zap.NewNop())
	require.NoError(t, err)

	bus := event.NewInMemoryEventBus(zap.NewNop())
	paid := testutil.NewMockEventHandler(order.EventTypeOrderPaid)
	bus.Subscribe(paid)

	replays := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = replays.Close() })

	orders := persistence.NewGormOrderRepository(tdb.DB)
	svc := payment.NewWebhookService(payment.WebhookServiceConfig{
		Verifier:     adapter,
		Orders:       orders,
		Sessions:     sessions,
		Reservations: reservations,
		Customers:    persistence.NewGormCustomerRepository(tdb.DB),
		WebhookLogs:  persistence.NewGormWebhookLogRepository(tdb.DB),
		Replays:      replays,
		Events:       bus,
		Logger:       zap.NewNop(),
	})

	payload, signature := signedCheckoutCompleted(t, "evt_int_1", sessionID.String())
	result, err := svc.ProcessWebhook(ctx, payload, signature)
	require.NoError(t, err)
	assert.True(t, result.Processed)

	o, err := orders.FindByCheckoutSessionID(ctx, "cs_int_1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(o.OrderNumber, "ORD-"), o.OrderNumber)
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, "pi_int_1", o.StripePaymentIntentID)
	assert.NotNil(t, o.CustomerID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)

	assert.Equal(t, 1, tdb.InventoryCount(variantID))

	record, err := sessions.FindByStripeSessionID(ctx, "cs_int_1")
	require.NoError(t, err)
	assert.Equal(t, order.SessionCompleted, record.Status)

	assert.Equal(t, 1, paid.HandledCount())

	var logStatus string
	require.NoError(t, tdb.DB.Raw("SELECT status FROM webhook_logs WHERE event_id = ?", "evt_int_1").Scan(&logStatus).Error)
	assert.Equal(t, "completed", logStatus)

	_, err = svc.ProcessWebhook(ctx, payload, signature)
	assert.ErrorIs(t, err, payment.ErrDuplicateEvent)
}

func TestVerification_SendAndVerify(t *testing.T) {
	tdb := NewSharedTestDB(t)
	ctx := testutil.ContextWithTimeout(t, time.Minute)
	userID := tdb.SeedUser("shopper@example.com")

	tokens := auth.NewJWTService(config.JWTConfig{
		Secret:         "integration-secret-at-least-32-chars",
		Issuer:         "kct",
		AccessTokenTTL: time.Hour,
	}, 24*time.Hour)
	logs := persistence.NewGormEmailLogRepository(tdb.DB)
	mailer := &captureMailer{}
	replays := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = replays.Close() })

	svc := verification.NewService(verification.ServiceConfig{
		Users:    persistence.NewGormUserRepository(tdb.DB),
		Logs:     logs,
		Queue:    job.NewInlineQueue(job.NewHandlers(mailer, logs, zap.NewNop())),
		Tokens:   tokens,
		Replays:  replays,
		SiteURL:  "https://kctmenswear.com",
		TokenTTL: 24 * time.Hour,
		Logger:   zap.NewNop(),
	})

	status, err := svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.False(t, status.IsVerified)

	_, err = svc.SendVerificationEmail(ctx, userID, "")
	require.NoError(t, err)

	msg := mailer.last(t)
	data, ok := msg.Data.(email.VerificationData)
	require.True(t, ok)
	link, err := url.Parse(data.VerificationURL)
	require.NoError(t, err)
	assert.Equal(t, "kctmenswear.com", link.Host)

	var logStatus string
	require.NoError(t, tdb.DB.Raw("SELECT status FROM email_logs WHERE recipient_email = ?", "shopper@example.com").Scan(&logStatus).Error)
	assert.Equal(t, "sent", logStatus)

	verified, err := svc.VerifyEmail(ctx, link.Query().Get("token"))
	require.NoError(t, err)
	assert.True(t, verified)

	status, err = svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.True(t, status.IsVerified)

	_, err = svc.VerifyEmail(ctx, link.Query().Get("token"))
	assert.ErrorIs(t, err, verification.ErrTokenUsed)
}

type captureMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *captureMailer) Send(_ context.Context, msg email.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return "email_" + uuid.NewString(), nil
}

func (m *captureMailer) last(t *testing.T) email.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

func signedCheckoutCompleted(t *testing.T, eventID, sessionKey string) ([]byte, string) {
	t.Helper()
	session, err := json.Marshal(map[string]any{
		"id":              "cs_int_1",
		"object":          "checkout.session",
		"payment_status":  "paid",
		"amount_subtotal": 59998,
		"amount_total":    61498,
		"currency":        "usd",
		"payment_intent":  "pi_int_1",
		"total_details":   map[string]any{"amount_tax": 0, "amount_shipping": 1500, "amount_discount": 0},
		"customer_details": map[string]any{
			"email": "buyer@example.com",
			"name":  "Jordan Buyer",
		},
		"metadata": map[string]string{payment.MetadataSessionID: sessionKey},
	})
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"id":     eventID,
		"object": "event",
		"type":   "checkout.session.completed",
		"data":   map[string]json.RawMessage{"object": session},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}
