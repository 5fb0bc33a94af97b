package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kctmenswear/storefront/internal/domain/order"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: tx}
}

// Create inserts a new order. A second order for the same checkout session
// returns shared.ErrAlreadyExists.
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	model, err := models.OrderModelFromDomain(o)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save updates an existing order
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	model, err := models.OrderModelFromDomain(o)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, args ...any) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByCheckoutSessionID finds the order created for a Stripe checkout session
func (r *GormOrderRepository) FindByCheckoutSessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	return r.findOne(ctx, "stripe_checkout_session_id = ?", sessionID)
}

// FindByPaymentIntentID finds the order paid by a Stripe payment intent
func (r *GormOrderRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*order.Order, error) {
	if paymentIntentID == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(ctx, "stripe_payment_intent_id = ?", paymentIntentID)
}

// GormCheckoutSessionRepository implements order.CheckoutSessionRepository using GORM
type GormCheckoutSessionRepository struct {
	db *gorm.DB
}

// NewGormCheckoutSessionRepository creates a new GormCheckoutSessionRepository
func NewGormCheckoutSessionRepository(db *gorm.DB) *GormCheckoutSessionRepository {
	return &GormCheckoutSessionRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormCheckoutSessionRepository) WithTx(tx *gorm.DB) *GormCheckoutSessionRepository {
	return &GormCheckoutSessionRepository{db: tx}
}

// Create inserts a checkout session record
func (r *GormCheckoutSessionRepository) Create(ctx context.Context, s *order.CheckoutSession) error {
	model, err := models.CheckoutSessionModelFromDomain(s)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByStripeSessionID finds a session record by its Stripe session ID
func (r *GormCheckoutSessionRepository) FindByStripeSessionID(ctx context.Context, stripeSessionID string) (*order.CheckoutSession, error) {
	var model models.CheckoutSessionModel
	if err := r.db.WithContext(ctx).First(&model, "stripe_session_id = ?", stripeSessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// MarkCompleted moves a created session to completed. Sessions already
// completed or expired are left unchanged.
func (r *GormCheckoutSessionRepository) MarkCompleted(ctx context.Context, stripeSessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutSessionModel{}).
		Where("stripe_session_id = ? AND status = ?", stripeSessionID, order.SessionCreated).
		Updates(map[string]any{
			"status":     order.SessionCompleted,
			"updated_at": time.Now(),
		}).Error
}

// ExpireStale marks created sessions past expires_at as expired
func (r *GormCheckoutSessionRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CheckoutSessionModel{}).
		Where("status = ? AND expires_at < ?", order.SessionCreated, now).
		Updates(map[string]any{
			"status":     order.SessionExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// Ensure interfaces are implemented
var (
	_ order.Repository                = (*GormOrderRepository)(nil)
	_ order.CheckoutSessionRepository = (*GormCheckoutSessionRepository)(nil)
)
