package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kctmenswear/storefront/internal/domain/catalog"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/persistence/models"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func withGallery(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Variants", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		Preload("Images", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") })
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var model models.ProductModel
	if err := withGallery(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormProductRepository) applyFilter(query *gorm.DB, filter catalog.ProductFilter) *gorm.DB {
	status := filter.Status
	if status == "" {
		status = catalog.ProductStatusActive
	}
	query = query.Where("status = ?", status)
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Subcategory != "" {
		query = query.Where("subcategory = ?", filter.Subcategory)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(name) LIKE ?", like)
	}
	return query
}

// List returns one page of products with variants and images
func (r *GormProductRepository) List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int64, error) {
	filter.Filter = filter.Filter.Normalize()

	var total int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ProductModel{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var productModels []models.ProductModel
	if err := withGallery(r.applyFilter(r.db.WithContext(ctx), filter)).
		Order(orderClause(filter.OrderBy, filter.OrderDir, ProductSortFields)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&productModels).Error; err != nil {
		return nil, 0, err
	}

	products := make([]catalog.Product, len(productModels))
	for i := range productModels {
		products[i] = *productModels[i].ToDomain()
	}
	return products, total, nil
}

// ListEnhanced returns one page of enhanced products
func (r *GormProductRepository) ListEnhanced(ctx context.Context, filter catalog.ProductFilter) ([]catalog.EnhancedProduct, int64, error) {
	filter.Filter = filter.Filter.Normalize()

	var total int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.EnhancedProductModel{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.EnhancedProductModel
	if err := r.applyFilter(r.db.WithContext(ctx), filter).
		Order(orderClause(filter.OrderBy, filter.OrderDir, EnhancedProductSortFields)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	products := make([]catalog.EnhancedProduct, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
	}
	return products, total, nil
}

// CategoryCounts groups active products by category and subcategory
func (r *GormProductRepository) CategoryCounts(ctx context.Context) ([]catalog.CategoryCount, error) {
	var counts []catalog.CategoryCount
	if err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Select("COALESCE(category, '') AS category, COALESCE(subcategory, '') AS subcategory, COUNT(*) AS count").
		Where("status = ?", catalog.ProductStatusActive).
		Group("category, subcategory").
		Order("category ASC, subcategory ASC").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

// ListActiveForExport returns every active product with variants and images
func (r *GormProductRepository) ListActiveForExport(ctx context.Context) ([]catalog.Product, error) {
	var productModels []models.ProductModel
	if err := withGallery(r.db.WithContext(ctx)).
		Where("status = ?", catalog.ProductStatusActive).
		Order("category ASC, name ASC").
		Find(&productModels).Error; err != nil {
		return nil, err
	}
	products := make([]catalog.Product, len(productModels))
	for i := range productModels {
		products[i] = *productModels[i].ToDomain()
	}
	return products, nil
}

// GormVariantRepository implements catalog.VariantRepository using GORM
type GormVariantRepository struct {
	db *gorm.DB
}

// NewGormVariantRepository creates a new GormVariantRepository
func NewGormVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{db: db}
}

// FindByID finds a variant with its parent product
func (r *GormVariantRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Variant, error) {
	var model models.ProductVariantModel
	if err := r.db.WithContext(ctx).Preload("Product").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripePriceID finds a variant by its Stripe price
func (r *GormVariantRepository) FindByStripePriceID(ctx context.Context, priceID string) (*catalog.Variant, error) {
	var model models.ProductVariantModel
	if err := r.db.WithContext(ctx).Preload("Product").
		Where("stripe_price_id = ?", priceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure interfaces are implemented
var (
	_ catalog.ProductRepository = (*GormProductRepository)(nil)
	_ catalog.VariantRepository = (*GormVariantRepository)(nil)
)
