package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kctmenswear/storefront/internal/application/payment"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/interfaces/http/middleware"
)

const testPayload = `{"id":"evt_1","type":"checkout.session.completed"}`

func webhookRouter(svc *MockWebhookProcessor) *gin.Engine {
	h := NewStripeWebhookHandler(svc)
	router := newTestRouter()
	router.POST("/webhooks/stripe", middleware.BodyLimit(middleware.WebhookMaxBodySize), h.HandleStripeWebhook)
	return router
}

func signed() map[string]string {
	return map[string]string{StripeSignatureHeader: "t=1,v1=abc"}
}

func decodeWebhook(t *testing.T, body string) StripeWebhookResponse {
	t.Helper()
	var resp StripeWebhookResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return resp
}

func TestStripeWebhookHandler_Processed(t *testing.T) {
	svc := new(MockWebhookProcessor)
	svc.On("ProcessWebhook", mock.Anything, []byte(testPayload), "t=1,v1=abc").Return(&payment.WebhookResult{
		EventID:   "evt_1",
		EventType: "checkout.session.completed",
		Processed: true,
		Message:   "Order ORD-1-ABCDEF created",
	}, nil)

	w := performRequest(webhookRouter(svc), http.MethodPost, "/webhooks/stripe", testPayload, signed())

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeWebhook(t, w.Body.String())
	assert.True(t, resp.Received)
	assert.Equal(t, "evt_1", resp.EventID)
	assert.Equal(t, "checkout.session.completed", resp.EventType)
	svc.AssertExpectations(t)
}

func TestStripeWebhookHandler_MissingSignature(t *testing.T) {
	svc := new(MockWebhookProcessor)

	w := performRequest(webhookRouter(svc), http.MethodPost, "/webhooks/stripe", testPayload, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, decodeWebhook(t, w.Body.String()).Received)
	svc.AssertNotCalled(t, "ProcessWebhook", mock.Anything, mock.Anything, mock.Anything)
}

func TestStripeWebhookHandler_PayloadTooLarge(t *testing.T) {
	svc := new(MockWebhookProcessor)
	big := `{"pad":"` + strings.Repeat("x", middleware.WebhookMaxBodySize) + `"}`

	w := performRequest(webhookRouter(svc), http.MethodPost, "/webhooks/stripe", big, signed())

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	svc.AssertNotCalled(t, "ProcessWebhook", mock.Anything, mock.Anything, mock.Anything)
}

func TestStripeWebhookHandler_Failures(t *testing.T) {
	tests := []struct {
		name   string
		result *payment.WebhookResult
		err    error
		status int
	}{
		{
			name:   "invalid signature",
			err:    shared.WrapDomainError(payment.ErrInvalidSignature.Code, payment.ErrInvalidSignature.Message, errors.New("bad v1")),
			status: http.StatusUnauthorized,
		},
		{
			name:   "duplicate event",
			err:    payment.ErrDuplicateEvent,
			status: http.StatusConflict,
		},
		{
			name:   "processing failed",
			result: &payment.WebhookResult{EventID: "evt_9", EventType: "checkout.session.completed"},
			err:    errors.New("insert order: deadlock detected"),
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockWebhookProcessor)
			svc.On("ProcessWebhook", mock.Anything, mock.Anything, mock.Anything).Return(tt.result, tt.err)

			w := performRequest(webhookRouter(svc), http.MethodPost, "/webhooks/stripe", testPayload, signed())

			assert.Equal(t, tt.status, w.Code)
			resp := decodeWebhook(t, w.Body.String())
			assert.False(t, resp.Received)
			assert.NotContains(t, w.Body.String(), "deadlock")
			if tt.result != nil {
				assert.Equal(t, tt.result.EventID, resp.EventID)
			}
		})
	}
}
