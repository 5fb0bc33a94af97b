package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kctmenswear/storefront/internal/application/checkout"
	"github.com/kctmenswear/storefront/internal/interfaces/http/middleware"
)

// CheckoutService opens hosted checkout sessions
type CheckoutService interface {
	CreateCheckout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

// CheckoutHandler handles checkout session creation
type CheckoutHandler struct {
	BaseHandler
	checkout CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(svc CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: svc}
}

// CreateCheckoutSessionRequest is the cart posted by the storefront.
// Item level rules (count, quantity, price source) are enforced by the
// checkout service so its error codes reach the client unchanged.
type CreateCheckoutSessionRequest struct {
	Items         []checkout.CartItem `json:"items"`
	CustomerEmail string              `json:"customer_email"`
	SuccessURL    string              `json:"success_url"`
	CancelURL     string              `json:"cancel_url"`
}

// CreateSession godoc
// @ID           createCheckoutSession
// @Summary      Create checkout session
// @Description  Validates the cart, reserves stock and returns the hosted Stripe checkout URL. Signed-in users are linked to the session.
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Param        request body CreateCheckoutSessionRequest true "Cart"
// @Success      200 {object} dto.Response{data=checkout.Result}
// @Failure      400 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      413 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /checkout/sessions [post]
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.checkout.CreateCheckout(c.Request.Context(), checkout.Request{
		Items:         req.Items,
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		Origin:        c.GetHeader("Origin"),
		UserID:        optionalUserID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
