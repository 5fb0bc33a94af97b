package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kctmenswear/storefront/internal/domain/notification"
	"github.com/kctmenswear/storefront/internal/domain/payment"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/persistence/models"
)

// GormWebhookLogRepository implements payment.WebhookLogRepository using GORM
type GormWebhookLogRepository struct {
	db *gorm.DB
}

// NewGormWebhookLogRepository creates a new GormWebhookLogRepository
func NewGormWebhookLogRepository(db *gorm.DB) *GormWebhookLogRepository {
	return &GormWebhookLogRepository{db: db}
}

// Create inserts a webhook log entry
func (r *GormWebhookLogRepository) Create(ctx context.Context, l *payment.WebhookLog) error {
	return r.db.WithContext(ctx).Create(models.WebhookLogModelFromDomain(l)).Error
}

// Finish stores the entry's final status and error message
func (r *GormWebhookLogRepository) Finish(ctx context.Context, l *payment.WebhookLog) error {
	result := r.db.WithContext(ctx).
		Model(&models.WebhookLogModel{}).
		Where("id = ?", l.ID).
		Updates(map[string]any{
			"status":        l.Status,
			"error_message": l.ErrorMessage,
			"updated_at":    l.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// PruneBefore deletes entries created before t
func (r *GormWebhookLogRepository) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", t).Delete(&models.WebhookLogModel{})
	return result.RowsAffected, result.Error
}

// GormEmailLogRepository implements notification.EmailLogRepository using GORM
type GormEmailLogRepository struct {
	db *gorm.DB
}

// NewGormEmailLogRepository creates a new GormEmailLogRepository
func NewGormEmailLogRepository(db *gorm.DB) *GormEmailLogRepository {
	return &GormEmailLogRepository{db: db}
}

// Create inserts an email log entry
func (r *GormEmailLogRepository) Create(ctx context.Context, l *notification.EmailLog) error {
	model, err := models.EmailLogModelFromDomain(l)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormEmailLogRepository) setStatus(ctx context.Context, id uuid.UUID, status notification.EmailStatus, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&models.EmailLogModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"error_message": reason,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkSent marks an entry sent
func (r *GormEmailLogRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, notification.EmailSent, "")
}

// MarkFailed marks an entry failed with reason
func (r *GormEmailLogRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.setStatus(ctx, id, notification.EmailFailed, reason)
}

// PruneBefore deletes entries created before t
func (r *GormEmailLogRepository) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", t).Delete(&models.EmailLogModel{})
	return result.RowsAffected, result.Error
}

// Ensure interfaces are implemented
var (
	_ payment.WebhookLogRepository    = (*GormWebhookLogRepository)(nil)
	_ notification.EmailLogRepository = (*GormEmailLogRepository)(nil)
)
