package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kctmenswear/storefront/internal/domain/notification"
	"github.com/kctmenswear/storefront/internal/domain/payment"
)

// WebhookLogModel is the persistence model for a received provider event.
type WebhookLogModel struct {
	BaseModel
	EventID      string                `gorm:"type:varchar(255);not null;index"`
	EventType    string                `gorm:"type:varchar(100);not null"`
	Status       payment.WebhookStatus `gorm:"type:varchar(20);not null;default:'processing'"`
	ErrorMessage string                `gorm:"type:text"`
	Payload      string                `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (WebhookLogModel) TableName() string {
	return "webhook_logs"
}

// WebhookLogModelFromDomain creates a new persistence model from a domain WebhookLog.
func WebhookLogModelFromDomain(l *payment.WebhookLog) *WebhookLogModel {
	m := &WebhookLogModel{
		EventID:      l.EventID,
		EventType:    l.EventType,
		Status:       l.Status,
		ErrorMessage: l.ErrorMessage,
		Payload:      string(l.Payload),
	}
	if !json.Valid(l.Payload) {
		m.Payload = "{}"
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}

// EmailLogModel is the persistence model for an outbound email.
type EmailLogModel struct {
	BaseModel
	RecipientEmail string                   `gorm:"type:varchar(255);not null;index"`
	EmailType      notification.EmailType   `gorm:"type:varchar(50);not null"`
	TemplateID     string                   `gorm:"type:varchar(100)"`
	Status         notification.EmailStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	CustomerID     *uuid.UUID               `gorm:"type:uuid"`
	Metadata       string                   `gorm:"type:jsonb;default:'{}'"`
	ErrorMessage   string                   `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (EmailLogModel) TableName() string {
	return "email_logs"
}

// EmailLogModelFromDomain creates a new persistence model from a domain EmailLog.
func EmailLogModelFromDomain(l *notification.EmailLog) (*EmailLogModel, error) {
	meta, err := json.Marshal(l.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode email metadata: %w", err)
	}
	if l.Metadata == nil {
		meta = []byte("{}")
	}
	m := &EmailLogModel{
		RecipientEmail: l.RecipientEmail,
		EmailType:      l.EmailType,
		TemplateID:     l.TemplateID,
		Status:         l.Status,
		CustomerID:     l.CustomerID,
		Metadata:       string(meta),
		ErrorMessage:   l.ErrorMessage,
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m, nil
}
