package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kctmenswear/storefront/internal/domain/order"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/persistence/models"
)

// GormReservationRepository implements order.ReservationRepository using GORM.
// Reserve locks each variant row so concurrent checkouts cannot oversell.
type GormReservationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db, now: time.Now}
}

// Reserve checks availability and inserts active reservations in one transaction
func (r *GormReservationRepository) Reserve(ctx context.Context, sessionKey string, reqs []order.ReservationRequest, expiresAt time.Time) error {
	now := r.now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, req := range reqs {
			var variant models.ProductVariantModel
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id", "inventory_count").
				First(&variant, "id = ?", req.VariantID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return shared.WrapDomainError(order.ErrVariantNotFound.Code, "Product variant not found: "+req.VariantID.String(), err)
				}
				return err
			}

			reserved, err := activeReserved(tx, req.VariantID, now)
			if err != nil {
				return err
			}

			available := order.Available(variant.InventoryCount, reserved)
			if available < req.Quantity {
				return &order.InsufficientStockError{
					Name:      req.Name,
					Requested: req.Quantity,
					Available: available,
				}
			}

			model := &models.StockReservationModel{
				BaseModel:  models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
				VariantID:  req.VariantID,
				Quantity:   req.Quantity,
				SessionKey: sessionKey,
				Status:     order.ReservationActive,
				ExpiresAt:  expiresAt,
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func activeReserved(tx *gorm.DB, variantID uuid.UUID, now time.Time) (int, error) {
	var reserved int64
	err := tx.Model(&models.StockReservationModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("variant_id = ? AND status = ? AND expires_at > ?", variantID, order.ReservationActive, now).
		Scan(&reserved).Error
	return int(reserved), err
}

// Release marks a session's active reservations released
func (r *GormReservationRepository) Release(ctx context.Context, sessionKey string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockReservationModel{}).
		Where("session_key = ? AND status = ?", sessionKey, order.ReservationActive).
		Updates(map[string]any{
			"status":     order.ReservationReleased,
			"updated_at": r.now(),
		})
	return result.RowsAffected, result.Error
}

// Finalize marks a session's active reservations finalized and deducts
// their quantity from inventory, never below zero
func (r *GormReservationRepository) Finalize(ctx context.Context, sessionKey string) (int64, error) {
	var finalized int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reservations []models.StockReservationModel
		if err := tx.Where("session_key = ? AND status = ?", sessionKey, order.ReservationActive).
			Find(&reservations).Error; err != nil {
			return err
		}

		now := r.now()
		for _, res := range reservations {
			if err := tx.Model(&models.ProductVariantModel{}).
				Where("id = ?", res.VariantID).
				Updates(map[string]any{
					"inventory_count": gorm.Expr("CASE WHEN inventory_count > ? THEN inventory_count - ? ELSE 0 END", res.Quantity, res.Quantity),
					"updated_at":      now,
				}).Error; err != nil {
				return err
			}
		}

		result := tx.Model(&models.StockReservationModel{}).
			Where("session_key = ? AND status = ?", sessionKey, order.ReservationActive).
			Updates(map[string]any{
				"status":     order.ReservationFinalized,
				"updated_at": now,
			})
		finalized = result.RowsAffected
		return result.Error
	})
	return finalized, err
}

// ReleaseExpired releases active reservations past their expiry
func (r *GormReservationRepository) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockReservationModel{}).
		Where("status = ? AND expires_at <= ?", order.ReservationActive, now).
		Updates(map[string]any{
			"status":     order.ReservationReleased,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// ListBySession returns every reservation recorded for a session key
func (r *GormReservationRepository) ListBySession(ctx context.Context, sessionKey string) ([]order.StockReservation, error) {
	var rows []models.StockReservationModel
	if err := r.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]order.StockReservation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Ensure interface is implemented
var _ order.ReservationRepository = (*GormReservationRepository)(nil)
