package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kctmenswear/storefront/internal/domain/catalog"
)

// ListProductsRequest holds the query parameters of product listings
type ListProductsRequest struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Category    string `form:"category" binding:"max=100"`
	Subcategory string `form:"subcategory" binding:"max=100"`
	Search      string `form:"search" binding:"max=100"`
}

// toFilter converts the request into a normalized repository filter
func (r ListProductsRequest) toFilter() catalog.ProductFilter {
	return catalog.ProductFilter{
		Filter:      catalogFilter(r.Page, r.PageSize, r.Search),
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Status:      catalog.ProductStatusActive,
	}
}

// VariantResponse represents a product variant in API responses
type VariantResponse struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	SKU            string          `json:"sku"`
	Size           string          `json:"size"`
	Color          string          `json:"color,omitempty"`
	Price          decimal.Decimal `json:"price"`
	StripePriceID  string          `json:"stripe_price_id,omitempty"`
	StripeActive   bool            `json:"stripe_active"`
	InventoryCount int             `json:"inventory_count"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	Subcategory  string            `json:"subcategory"`
	SKU          string            `json:"sku"`
	Handle       string            `json:"handle"`
	Brand        string            `json:"brand,omitempty"`
	Status       string            `json:"status"`
	PrimaryImage string            `json:"primary_image"`
	Images       []string          `json:"images"`
	Tags         []string          `json:"tags"`
	Variants     []VariantResponse `json:"variants"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// EnhancedProductResponse represents an enhanced product in API responses
type EnhancedProductResponse struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Subcategory string           `json:"subcategory"`
	Status      string           `json:"status"`
	Images      catalog.ImageSet `json:"images"`
	SizeOptions []string         `json:"size_options"`
	BasePrice   decimal.Decimal  `json:"base_price"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ListResult is one page of a listing
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func newListResult[T any](items []T, total int64, page, pageSize int) ListResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return ListResult[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: pages,
	}
}

// SubcategoryResponse is the product count of one subcategory
type SubcategoryResponse struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// CategoryResponse is a category with its product count and subcategories
type CategoryResponse struct {
	Name          string                `json:"name"`
	Count         int64                 `json:"count"`
	Subcategories []SubcategoryResponse `json:"subcategories"`
}

// ToProductResponse converts a domain product to a response
func ToProductResponse(p *catalog.Product) ProductResponse {
	variants := make([]VariantResponse, len(p.Variants))
	for i, v := range p.Variants {
		variants[i] = VariantResponse{
			ID:             v.ID,
			Title:          v.Title,
			SKU:            v.SKU,
			Size:           v.Size,
			Color:          v.Color,
			Price:          v.Price,
			StripePriceID:  v.StripePriceID,
			StripeActive:   v.StripeActive,
			InventoryCount: v.InventoryCount,
		}
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Category:     p.Category,
		Subcategory:  p.Subcategory,
		SKU:          p.SKU,
		Handle:       p.Handle,
		Brand:        p.Brand,
		Status:       string(p.Status),
		PrimaryImage: p.PrimaryImage,
		Images:       p.GalleryImages(),
		Tags:         tags,
		Variants:     variants,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// ToEnhancedProductResponse converts an enhanced product to a response
func ToEnhancedProductResponse(p *catalog.EnhancedProduct) EnhancedProductResponse {
	sizes := p.SizeOptions
	if sizes == nil {
		sizes = []string{}
	}
	return EnhancedProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Status:      string(p.Status),
		Images:      p.Images,
		SizeOptions: sizes,
		BasePrice:   p.BasePrice,
		CreatedAt:   p.CreatedAt,
	}
}
