// Package catalog serves storefront product reads through the tiered cache.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/domain/catalog"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/cache"
)

// ProductService handles product reads
type ProductService struct {
	products catalog.ProductRepository
	cache    *cache.TieredCache
	logger   *zap.Logger
}

// NewProductService creates a new ProductService. A nil cache reads through
// to the repository.
func NewProductService(products catalog.ProductRepository, c *cache.TieredCache, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		products: products,
		cache:    c,
		logger:   logger,
	}
}

func catalogFilter(page, pageSize int, search string) shared.Filter {
	f := shared.DefaultFilter()
	f.Page = page
	f.PageSize = pageSize
	f.Search = strings.TrimSpace(search)
	return f.Normalize()
}

// listKey identifies one page of a listing
func listKey(kind string, f catalog.ProductFilter) string {
	return cache.Key(cache.TypeProducts, kind,
		"page="+strconv.Itoa(f.Page),
		"size="+strconv.Itoa(f.PageSize),
		"cat="+strings.ToLower(f.Category),
		"sub="+strings.ToLower(f.Subcategory),
		"q="+strings.ToLower(f.Search))
}

// ListProducts returns one page of active products with variants and images
func (s *ProductService) ListProducts(ctx context.Context, req ListProductsRequest) (ListResult[ProductResponse], error) {
	filter := req.toFilter()
	return cached(ctx, s, cache.TypeProducts, listKey("list", filter), func(ctx context.Context) (ListResult[ProductResponse], error) {
		products, total, err := s.products.List(ctx, filter)
		if err != nil {
			return ListResult[ProductResponse]{}, fmt.Errorf("failed to list products: %w", err)
		}
		items := make([]ProductResponse, len(products))
		for i := range products {
			items[i] = ToProductResponse(&products[i])
		}
		return newListResult(items, total, filter.Page, filter.PageSize), nil
	})
}

// GetProduct returns an active product by ID
func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	resp, err := cached(ctx, s, cache.TypeProducts, cache.Key(cache.TypeProducts, "id", id.String()), func(ctx context.Context) (ProductResponse, error) {
		p, err := s.products.FindByID(ctx, id)
		if err != nil {
			return ProductResponse{}, err
		}
		if !p.IsActive() {
			return ProductResponse{}, shared.ErrNotFound
		}
		return ToProductResponse(p), nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListEnhancedProducts returns one page of enhanced products
func (s *ProductService) ListEnhancedProducts(ctx context.Context, req ListProductsRequest) (ListResult[EnhancedProductResponse], error) {
	filter := req.toFilter()
	return cached(ctx, s, cache.TypeProducts, listKey("enhanced", filter), func(ctx context.Context) (ListResult[EnhancedProductResponse], error) {
		products, total, err := s.products.ListEnhanced(ctx, filter)
		if err != nil {
			return ListResult[EnhancedProductResponse]{}, fmt.Errorf("failed to list enhanced products: %w", err)
		}
		items := make([]EnhancedProductResponse, len(products))
		for i := range products {
			items[i] = ToEnhancedProductResponse(&products[i])
		}
		return newListResult(items, total, filter.Page, filter.PageSize), nil
	})
}

// cached runs loader through the tiered cache when one is configured
func cached[T any](ctx context.Context, s *ProductService, t cache.Type, key string, loader func(ctx context.Context) (T, error)) (T, error) {
	if s.cache == nil {
		return loader(ctx)
	}
	v, err := cache.GetOrLoad(ctx, s.cache, t, key, loader)
	if err != nil {
		s.logger.Debug("Catalog load failed", zap.String("key", key), zap.Error(err))
	}
	return v, err
}
