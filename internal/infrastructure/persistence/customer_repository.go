package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kctmenswear/storefront/internal/domain/customer"
	"github.com/kctmenswear/storefront/internal/domain/identity"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/persistence/models"
)

// GormCustomerRepository implements customer.Repository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByEmail finds a customer by email, case-insensitively
func (r *GormCustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a customer. An existing email returns shared.ErrAlreadyExists.
func (r *GormCustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	if err := r.db.WithContext(ctx).Create(models.CustomerModelFromDomain(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GormUserRepository implements identity.UserRepository using GORM
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID finds a user by its ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	var model models.UserModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ConfirmEmail sets email_confirmed_at if it is not already set
func (r *GormUserRepository) ConfirmEmail(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserModel{}).
		Where("id = ? AND email_confirmed_at IS NULL", id).
		Updates(map[string]any{
			"email_confirmed_at": at,
			"updated_at":         at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	// Nothing updated: either already confirmed or missing
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return nil
}

// Ensure interfaces are implemented
var (
	_ customer.Repository     = (*GormCustomerRepository)(nil)
	_ identity.UserRepository = (*GormUserRepository)(nil)
)
