package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kctmenswear/storefront/internal/application/verification"
	"github.com/kctmenswear/storefront/internal/interfaces/http/middleware"
)

// VerificationService manages email verification for signed-in users
type VerificationService interface {
	Status(ctx context.Context, userID uuid.UUID) (*verification.Status, error)
	Banner(ctx context.Context, userID uuid.UUID) (*verification.Banner, error)
	SendVerificationEmail(ctx context.Context, userID uuid.UUID, origin string) (*verification.SendResult, error)
	VerifyEmail(ctx context.Context, token string) (bool, error)
}

// VerificationHandler serves the email verification endpoints
type VerificationHandler struct {
	BaseHandler
	verification VerificationService
}

// NewVerificationHandler creates a new VerificationHandler
func NewVerificationHandler(svc VerificationService) *VerificationHandler {
	return &VerificationHandler{verification: svc}
}

// VerifyEmailRequest carries the emailed token
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required,max=4096"`
}

// VerifyEmailResponse reports the verification outcome
type VerifyEmailResponse struct {
	Verified bool `json:"verified"`
}

// Status godoc
// @ID           getEmailVerificationStatus
// @Summary      Get email verification status
// @Description  Reports whether the current user's email is verified
// @Tags         email-verification
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response{data=verification.Status}
// @Failure      401 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /auth/email-verification [get]
func (h *VerificationHandler) Status(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	status, err := h.verification.Status(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Banner godoc
// @ID           getEmailVerificationBanner
// @Summary      Get verification banner
// @Description  Returns whether the verification banner should be shown and its message
// @Tags         email-verification
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response{data=verification.Banner}
// @Failure      401 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /auth/email-verification/banner [get]
func (h *VerificationHandler) Banner(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	banner, err := h.verification.Banner(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, banner)
}

// Send godoc
// @ID           sendVerificationEmail
// @Summary      Send verification email
// @Description  Emails a verification link to the current user. Only one send per user runs at a time.
// @Tags         email-verification
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response{data=verification.SendResult}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /auth/email-verification/send [post]
func (h *VerificationHandler) Send(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	result, err := h.verification.SendVerificationEmail(c.Request.Context(), userID, c.GetHeader("Origin"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Verify godoc
// @ID           verifyEmail
// @Summary      Verify email
// @Description  Consumes a verification token. No session is required since the link is usually opened from an email client.
// @Tags         email-verification
// @Accept       json
// @Produce      json
// @Param        request body VerifyEmailRequest true "Verification token"
// @Success      200 {object} dto.Response{data=VerifyEmailResponse}
// @Failure      400 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /auth/email-verification/verify [post]
func (h *VerificationHandler) Verify(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	ok, err := h.verification.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, VerifyEmailResponse{Verified: ok})
}
