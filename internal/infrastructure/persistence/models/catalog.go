package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kctmenswear/storefront/internal/domain/catalog"
)

// ProductModel is the persistence model for the Product entity.
type ProductModel struct {
	BaseModel
	Name         string                `gorm:"type:varchar(255);not null"`
	Description  string                `gorm:"type:text"`
	Category     string                `gorm:"type:varchar(100);index"`
	Subcategory  string                `gorm:"type:varchar(100)"`
	SKU          string                `gorm:"column:sku;type:varchar(100)"`
	Handle       string                `gorm:"type:varchar(255)"`
	Brand        string                `gorm:"type:varchar(100)"`
	Supplier     string                `gorm:"type:varchar(100)"`
	Status       catalog.ProductStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	PrimaryImage string                `gorm:"type:text"`
	Tags         pq.StringArray        `gorm:"type:text[]"`
	Variants     []ProductVariantModel `gorm:"foreignKey:ProductID"`
	Images       []ProductImageModel   `gorm:"foreignKey:ProductID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Category:     m.Category,
		Subcategory:  m.Subcategory,
		SKU:          m.SKU,
		Handle:       m.Handle,
		Brand:        m.Brand,
		Supplier:     m.Supplier,
		Status:       m.Status,
		PrimaryImage: m.PrimaryImage,
		Tags:         []string(m.Tags),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	for i := range m.Variants {
		v := m.Variants[i].ToDomain()
		p.Variants = append(p.Variants, *v)
	}
	for i := range m.Images {
		p.Images = append(p.Images, m.Images[i].ToDomain())
	}
	return p
}

// ProductVariantModel is the persistence model for a product variant.
// Price is stored in dollars.
type ProductVariantModel struct {
	BaseModel
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Title          string          `gorm:"type:varchar(255)"`
	SKU            string          `gorm:"column:sku;type:varchar(100)"`
	Size           string          `gorm:"type:varchar(50)"`
	Color          string          `gorm:"type:varchar(50)"`
	Price          decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	StripePriceID  string          `gorm:"type:varchar(255);index"`
	StripeActive   bool            `gorm:"not null;default:false"`
	InventoryCount int             `gorm:"not null;default:0"`
	Product        *ProductModel   `gorm:"foreignKey:ProductID"`
}

// TableName returns the table name for GORM
func (ProductVariantModel) TableName() string {
	return "product_variants"
}

// ToDomain converts the persistence model to a domain Variant.
func (m *ProductVariantModel) ToDomain() *catalog.Variant {
	v := &catalog.Variant{
		ID:             m.ID,
		ProductID:      m.ProductID,
		Title:          m.Title,
		SKU:            m.SKU,
		Size:           m.Size,
		Color:          m.Color,
		Price:          m.Price,
		StripePriceID:  m.StripePriceID,
		StripeActive:   m.StripeActive,
		InventoryCount: m.InventoryCount,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Product != nil {
		v.Product = m.Product.ToDomain()
	}
	return v
}

// ProductImageModel is the persistence model for a gallery image.
type ProductImageModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index"`
	ImageURL  string    `gorm:"column:image_url;type:text;not null"`
	ImageType string    `gorm:"type:varchar(50)"`
	Position  int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductImageModel) TableName() string {
	return "product_images"
}

// ToDomain converts the persistence model to a domain ProductImage.
func (m *ProductImageModel) ToDomain() catalog.ProductImage {
	return catalog.ProductImage{
		ID:        m.ID,
		ProductID: m.ProductID,
		URL:       m.ImageURL,
		Type:      m.ImageType,
		Position:  m.Position,
	}
}

// EnhancedProductModel is the persistence model for products_enhanced.
type EnhancedProductModel struct {
	ID          uuid.UUID             `gorm:"type:uuid;primary_key"`
	Name        string                `gorm:"type:varchar(255);not null"`
	Category    string                `gorm:"type:varchar(100)"`
	Subcategory string                `gorm:"type:varchar(100)"`
	Status      catalog.ProductStatus `gorm:"type:varchar(20);not null;default:'active'"`
	Images      string                `gorm:"type:jsonb"`
	SizeOptions string                `gorm:"type:jsonb"`
	BasePrice   decimal.Decimal       `gorm:"type:numeric(10,2)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for GORM
func (EnhancedProductModel) TableName() string {
	return "products_enhanced"
}

// ToDomain converts the persistence model to a domain EnhancedProduct.
// Malformed JSON columns decode as empty values.
func (m *EnhancedProductModel) ToDomain() *catalog.EnhancedProduct {
	p := &catalog.EnhancedProduct{
		ID:          m.ID,
		Name:        m.Name,
		Category:    m.Category,
		Subcategory: m.Subcategory,
		Status:      m.Status,
		BasePrice:   m.BasePrice,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Images != "" {
		_ = json.Unmarshal([]byte(m.Images), &p.Images)
	}
	if m.SizeOptions != "" {
		_ = json.Unmarshal([]byte(m.SizeOptions), &p.SizeOptions)
	}
	return p
}
