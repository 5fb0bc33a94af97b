package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kctmenswear/storefront/internal/domain/shared"
)

// WebhookStatus is the processing state of a webhook log entry
type WebhookStatus string

const (
	WebhookProcessing WebhookStatus = "processing"
	WebhookCompleted  WebhookStatus = "completed"
	WebhookFailed     WebhookStatus = "failed"
)

// WebhookLog records one received provider event
type WebhookLog struct {
	shared.BaseEntity
	EventID      string
	EventType    string
	Status       WebhookStatus
	ErrorMessage string
	Payload      json.RawMessage
}

// NewWebhookLog creates a processing entry
func NewWebhookLog(eventID, eventType string, payload []byte) *WebhookLog {
	return &WebhookLog{
		BaseEntity: shared.NewBaseEntity(),
		EventID:    eventID,
		EventType:  eventType,
		Status:     WebhookProcessing,
		Payload:    payload,
	}
}

// WebhookLogRepository persists webhook logs
type WebhookLogRepository interface {
	Create(ctx context.Context, log *WebhookLog) error
	// Finish sets the final status and error message
	Finish(ctx context.Context, log *WebhookLog) error
	// PruneBefore deletes entries created before t
	PruneBefore(ctx context.Context, t time.Time) (int64, error)
}

// Complete marks the entry completed
func (l *WebhookLog) Complete() {
	l.Status = WebhookCompleted
	l.ErrorMessage = ""
	l.Touch()
}

// Fail marks the entry failed with err's message
func (l *WebhookLog) Fail(err error) {
	l.Status = WebhookFailed
	if err != nil {
		l.ErrorMessage = err.Error()
	}
	l.Touch()
}
