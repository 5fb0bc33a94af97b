package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/kctmenswear/storefront/internal/domain/shared"
)

// ProductFilter narrows product listings
type ProductFilter struct {
	shared.Filter
	Category    string
	Subcategory string
	Status      ProductStatus
}

// ProductRepository reads catalog products
type ProductRepository interface {
	// FindByID loads a product with its variants and images
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// List returns one page of products with variants and images
	List(ctx context.Context, filter ProductFilter) ([]Product, int64, error)
	// ListEnhanced returns one page of enhanced products
	ListEnhanced(ctx context.Context, filter ProductFilter) ([]EnhancedProduct, int64, error)
	// CategoryCounts groups active products by category and subcategory
	CategoryCounts(ctx context.Context) ([]CategoryCount, error)
	// ListActiveForExport returns every active product with variants and images
	ListActiveForExport(ctx context.Context) ([]Product, error)
}

// VariantRepository reads product variants
type VariantRepository interface {
	// FindByID loads a variant with its parent product
	FindByID(ctx context.Context, id uuid.UUID) (*Variant, error)
	// FindByStripePriceID loads the variant bound to a Stripe price, if any
	FindByStripePriceID(ctx context.Context, priceID string) (*Variant, error)
}
