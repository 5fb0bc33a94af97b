package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/application/payment"
	"github.com/kctmenswear/storefront/internal/infrastructure/logger"
	"github.com/kctmenswear/storefront/internal/interfaces/http/middleware"
)

// StripeSignatureHeader carries the webhook signature
const StripeSignatureHeader = "Stripe-Signature"

// WebhookProcessor processes signed Stripe webhook payloads
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, payload []byte, signature string) (*payment.WebhookResult, error)
}

// StripeWebhookHandler handles Stripe webhook endpoints.
// These endpoints are called by Stripe and do not require authentication.
type StripeWebhookHandler struct {
	BaseHandler
	webhooks WebhookProcessor
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler
func NewStripeWebhookHandler(webhooks WebhookProcessor) *StripeWebhookHandler {
	return &StripeWebhookHandler{webhooks: webhooks}
}

// StripeWebhookResponse is the body returned to Stripe
type StripeWebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// HandleStripeWebhook godoc
// @ID           handleStripeWebhook
// @Summary      Handle Stripe webhook
// @Description  Verifies the Stripe-Signature header and processes the event. Payloads over 64KB are rejected.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Stripe webhook signature"
// @Param        payload          body   object true "Stripe event payload"
// @Success      200 {object} StripeWebhookResponse
// @Failure      400 {object} StripeWebhookResponse
// @Failure      401 {object} StripeWebhookResponse
// @Failure      409 {object} StripeWebhookResponse
// @Failure      413 {object} StripeWebhookResponse
// @Router       /webhooks/stripe [post]
func (h *StripeWebhookHandler) HandleStripeWebhook(c *gin.Context) {
	// Stripe requires the raw body for signature verification
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, middleware.WebhookMaxBodySize+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, StripeWebhookResponse{Message: "Payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, StripeWebhookResponse{Message: "Failed to read request body"})
		return
	}
	if len(payload) > middleware.WebhookMaxBodySize {
		c.JSON(http.StatusRequestEntityTooLarge, StripeWebhookResponse{Message: "Payload too large"})
		return
	}

	signature := c.GetHeader(StripeSignatureHeader)
	if signature == "" {
		c.JSON(http.StatusUnauthorized, StripeWebhookResponse{Message: "Missing Stripe-Signature header"})
		return
	}

	result, err := h.webhooks.ProcessWebhook(c.Request.Context(), payload, signature)
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, StripeWebhookResponse{Message: "Webhook signature verification failed"})
		return
	case errors.Is(err, payment.ErrDuplicateEvent):
		c.JSON(http.StatusConflict, StripeWebhookResponse{Message: "Event already processed"})
		return
	case err != nil:
		_ = c.Error(err)
		logger.GetGinLogger(c).Error("stripe webhook failed", zap.Error(err))
		// Internal details stay in the logs
		resp := StripeWebhookResponse{Message: "Webhook processing failed"}
		if result != nil {
			resp.EventID = result.EventID
			resp.EventType = result.EventType
		}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	c.JSON(http.StatusOK, StripeWebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType,
		Message:   result.Message,
	})
}
