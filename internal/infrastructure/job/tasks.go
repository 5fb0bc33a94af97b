package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/kctmenswear/storefront/internal/infrastructure/email"
)

// Task type names stored in Redis
const (
	TaskVerificationEmail      = "email:verification"
	TaskOrderConfirmationEmail = "email:order_confirmation"
)

// Queue names and their worker weights
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// DefaultMaxRetry is the retry budget for email tasks
const DefaultMaxRetry = 3

const taskTimeout = 30 * time.Second

// VerificationEmailPayload is the payload of the verification email task
type VerificationEmailPayload struct {
	EmailLogID      uuid.UUID `json:"email_log_id"`
	To              string    `json:"to"`
	Name            string    `json:"name,omitempty"`
	VerificationURL string    `json:"verification_url"`
	ExpiresIn       string    `json:"expires_in"`
}

// OrderConfirmationPayload is the payload of the order confirmation task
type OrderConfirmationPayload struct {
	EmailLogID uuid.UUID                   `json:"email_log_id"`
	To         string                      `json:"to"`
	Order      email.OrderConfirmationData `json:"order"`
}

// NewVerificationEmailTask builds the verification email task
func NewVerificationEmailTask(p VerificationEmailPayload, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskVerificationEmail,
		payload,
		asynq.MaxRetry(maxRetry),
		asynq.Queue(QueueCritical),
		asynq.Timeout(taskTimeout),
	), nil
}

// NewOrderConfirmationTask builds the order confirmation task.
// The task ID is derived from the order number so a replayed webhook
// cannot queue a second confirmation.
func NewOrderConfirmationTask(p OrderConfirmationPayload, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskOrderConfirmationEmail,
		payload,
		asynq.MaxRetry(maxRetry),
		asynq.Queue(QueueDefault),
		asynq.Timeout(taskTimeout),
		asynq.TaskID("order-confirmation:"+p.Order.OrderNumber),
	), nil
}
