package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/domain/notification"
	"github.com/kctmenswear/storefront/internal/infrastructure/email"
)

// Mailer sends rendered email
type Mailer interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

// Handlers process email tasks and keep email_logs current
type Handlers struct {
	mailer Mailer
	logs   notification.EmailLogRepository
	logger *zap.Logger
}

// NewHandlers creates the email task handlers
func NewHandlers(mailer Mailer, logs notification.EmailLogRepository, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{mailer: mailer, logs: logs, logger: logger}
}

// Register routes task types to handlers
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskVerificationEmail, h.HandleVerificationEmail)
	mux.HandleFunc(TaskOrderConfirmationEmail, h.HandleOrderConfirmation)
}

// HandleVerificationEmail sends a queued verification email
func (h *Handlers) HandleVerificationEmail(ctx context.Context, t *asynq.Task) error {
	var p VerificationEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal verification email payload: %v: %w", err, asynq.SkipRetry)
	}

	msg := email.VerificationMessage(p.To, email.VerificationData{
		Name:            p.Name,
		VerificationURL: p.VerificationURL,
		ExpiresIn:       p.ExpiresIn,
	})
	msg.IdempotencyKey = "verification/" + p.EmailLogID.String()
	return h.deliver(ctx, p.EmailLogID, msg)
}

// HandleOrderConfirmation sends a queued order confirmation
func (h *Handlers) HandleOrderConfirmation(ctx context.Context, t *asynq.Task) error {
	var p OrderConfirmationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal order confirmation payload: %v: %w", err, asynq.SkipRetry)
	}
	return h.deliver(ctx, p.EmailLogID, email.OrderConfirmationMessage(p.To, p.Order))
}

func (h *Handlers) deliver(ctx context.Context, logID uuid.UUID, msg email.Message) error {
	log := h.logger.With(
		zap.String("template", string(msg.Template)),
		zap.String("to", msg.To),
		zap.String("email_log_id", logID.String()),
	)
	log.Info("Processing email task")

	_, err := h.mailer.Send(ctx, msg)
	if err != nil {
		if errors.Is(err, email.ErrAPIKeyMissing) || isFinalAttempt(ctx) {
			h.markFailed(ctx, logID, err)
			if errors.Is(err, email.ErrAPIKeyMissing) {
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
		}
		log.Error("Failed to send email", zap.Error(err))
		return err
	}

	if logID != uuid.Nil {
		if err := h.logs.MarkSent(ctx, logID); err != nil {
			log.Warn("Failed to mark email log sent", zap.Error(err))
		}
	}
	log.Info("Email task completed")
	return nil
}

func (h *Handlers) markFailed(ctx context.Context, logID uuid.UUID, cause error) {
	if logID == uuid.Nil {
		return
	}
	if err := h.logs.MarkFailed(ctx, logID, cause.Error()); err != nil {
		h.logger.Warn("Failed to mark email log failed",
			zap.String("email_log_id", logID.String()),
			zap.Error(err))
	}
}

// isFinalAttempt reports whether asynq will not retry after this attempt.
// Outside a worker (inline dispatch) every attempt is final.
func isFinalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried >= maxRetry
}
