package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kctmenswear/storefront/internal/domain/shared/valueobject"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

type sentEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Html    string   `json:"html"`
	ReplyTo string   `json:"reply_to"`
	Tags    []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"tags"`
}

type fakeResend struct {
	mu          sync.Mutex
	sent        []sentEmail
	idempotency []string
	status      int
}

func (f *fakeResend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Method != http.MethodPost || r.URL.Path != "/emails" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid to field"}`))
		return
	}
	var e sentEmail
	_ = json.NewDecoder(r.Body).Decode(&e)
	f.sent = append(f.sent, e)
	f.idempotency = append(f.idempotency, r.Header.Get("Idempotency-Key"))
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"id":"email_123"}`))
}

func (f *fakeResend) emails() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

func newTestClient(t *testing.T, fake *fakeResend) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)

	c, err := NewClient(config.EmailConfig{
		ResendAPIKey: "re_test_123",
		ReplyTo:      "support@kctmenswear.com",
	}, WithBaseURL(base))
	require.NoError(t, err)
	return c
}

func TestRender_Verification(t *testing.T) {
	c, err := NewClient(config.EmailConfig{})
	require.NoError(t, err)

	html, err := c.Render(TemplateVerification, VerificationData{
		VerificationURL: "https://kctmenswear.com/verify-email?token=abc",
		ExpiresIn:       "24 hours",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Hi there,")
	assert.Contains(t, html, `href="https://kctmenswear.com/verify-email?token=abc"`)
	assert.Contains(t, html, "This link expires in 24 hours.")
}

func TestRender_OrderConfirmation(t *testing.T) {
	c, err := NewClient(config.EmailConfig{})
	require.NoError(t, err)

	html, err := c.Render(TemplateOrderConfirmation, OrderConfirmationData{
		OrderNumber:  "ORD-1700000000000-ABC123",
		OrderDate:    "Mar 1, 2025",
		CustomerName: "James <Bond>",
		Items: []OrderLine{
			{Name: "Navy Suit", Size: "40R", Quantity: 1, UnitPrice: "299.00"},
			{Name: "Silk Tie", Quantity: 2, UnitPrice: "25.00"},
		},
		Subtotal: "349.00",
		Total:    "349.00",
		ShippingAddress: &valueobject.Address{
			Line1: "1 Main St", City: "Kalamazoo", State: "MI", PostalCode: "49007", Country: "US",
		},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Order #ORD-1700000000000-ABC123")
	assert.Contains(t, html, "James &lt;Bond&gt;")
	assert.Contains(t, html, "Size: 40R")
	assert.Contains(t, html, "Quantity: 2 &times; $25.00")
	assert.Contains(t, html, "Total: $349.00")
	assert.Contains(t, html, "Kalamazoo, MI 49007")
	assert.NotContains(t, html, "Shipping: $")
}

func TestSend(t *testing.T) {
	fake := &fakeResend{}
	c := newTestClient(t, fake)

	msg := OrderConfirmationMessage("buyer@example.com", OrderConfirmationData{
		OrderNumber: "ORD-1-ABCDEF",
		Subtotal:    "10.00",
		Total:       "10.00",
	})
	id, err := c.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "email_123", id)

	sent := fake.emails()
	require.Len(t, sent, 1)
	assert.Equal(t, DefaultFrom, sent[0].From)
	assert.Equal(t, []string{"buyer@example.com"}, sent[0].To)
	assert.Equal(t, "Order Confirmation - #ORD-1-ABCDEF", sent[0].Subject)
	assert.Equal(t, "support@kctmenswear.com", sent[0].ReplyTo)
	assert.Contains(t, sent[0].Html, "ORD-1-ABCDEF")
	assert.Len(t, sent[0].Tags, 2)
	assert.Equal(t, []string{"order-confirmation/ORD-1-ABCDEF"}, fake.idempotency)
}

func TestSend_ProviderError(t *testing.T) {
	fake := &fakeResend{status: http.StatusUnprocessableEntity}
	c := newTestClient(t, fake)

	_, err := c.Send(context.Background(), VerificationMessage("bad", VerificationData{VerificationURL: "https://x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send email")
}

func TestSend_MissingAPIKey(t *testing.T) {
	c, err := NewClient(config.EmailConfig{})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), VerificationMessage("a@example.com", VerificationData{}))
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "24 hours", FormatDuration(24*time.Hour))
	assert.Equal(t, "1 hour", FormatDuration(time.Hour))
	assert.Equal(t, "90 minutes", FormatDuration(90*time.Minute))
	assert.Equal(t, "1 minute", FormatDuration(time.Minute))
	assert.Equal(t, "30s", FormatDuration(30*time.Second))
}
