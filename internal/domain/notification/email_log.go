package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kctmenswear/storefront/internal/domain/shared"
)

// EmailType identifies the kind of transactional email
type EmailType string

const (
	EmailVerification     EmailType = "email_verification"
	EmailOrderConfirmation EmailType = "order_confirmation"
)

// EmailStatus is the delivery state of an email log entry
type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

// EmailLog records one outbound transactional email
type EmailLog struct {
	shared.BaseEntity
	RecipientEmail string
	EmailType      EmailType
	TemplateID     string
	Status         EmailStatus
	CustomerID     *uuid.UUID
	Metadata       map[string]any
	ErrorMessage   string
}

// NewEmailLog creates a pending log entry
func NewEmailLog(recipient string, emailType EmailType, templateID string, metadata map[string]any) *EmailLog {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &EmailLog{
		BaseEntity:     shared.NewBaseEntity(),
		RecipientEmail: recipient,
		EmailType:      emailType,
		TemplateID:     templateID,
		Status:         EmailPending,
		Metadata:       metadata,
	}
}

// EmailLogRepository persists email logs
type EmailLogRepository interface {
	Create(ctx context.Context, log *EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	// PruneBefore deletes entries created before t
	PruneBefore(ctx context.Context, t time.Time) (int64, error)
}
