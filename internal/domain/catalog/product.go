package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kctmenswear/storefront/internal/domain/shared/valueobject"
)

// ProductStatus represents the publication status of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusArchived ProductStatus = "archived"
)

// OneSize is the placeholder size on variants without a real size
const OneSize = "One Size"

// Price bounds accepted at checkout, in dollars
var (
	MinVariantPrice = decimal.RequireFromString("0.50")
	MaxVariantPrice = decimal.NewFromInt(10000)
)

// Product is a catalog product with its variants and images
type Product struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Category     string
	Subcategory  string
	SKU          string
	Handle       string
	Brand        string
	Supplier     string
	Status       ProductStatus
	PrimaryImage string
	Tags         []string
	Variants     []Variant
	Images       []ProductImage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the product is sellable
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// FirstVariant returns the first variant, if any
func (p *Product) FirstVariant() (*Variant, bool) {
	if len(p.Variants) == 0 {
		return nil, false
	}
	return &p.Variants[0], true
}

// GalleryImages returns image URLs ordered by position, primary image first
func (p *Product) GalleryImages() []string {
	urls := make([]string, 0, len(p.Images)+1)
	seen := make(map[string]struct{}, len(p.Images)+1)
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	add(p.PrimaryImage)
	for _, img := range p.Images {
		add(img.URL)
	}
	return urls
}

// Variant is a purchasable size/colour of a product. Price is in dollars.
type Variant struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	Title          string
	SKU            string
	Size           string
	Color          string
	Price          decimal.Decimal
	StripePriceID  string
	StripeActive   bool
	InventoryCount int
	Product        *Product
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasRealSize reports whether the variant carries a size other than "One Size"
func (v *Variant) HasRealSize() bool {
	s := strings.TrimSpace(v.Size)
	return s != "" && !strings.EqualFold(s, OneSize)
}

// PriceInRange reports whether the variant price is within checkout bounds
func (v *Variant) PriceInRange() bool {
	return valueobject.Dollars(v.Price).Between(MinVariantPrice, MaxVariantPrice)
}

// DisplayName returns "<product> - <variant title>" when both are known
func (v *Variant) DisplayName() string {
	name := v.Title
	if v.Product != nil && v.Product.Name != "" {
		if name == "" || strings.EqualFold(name, "Default Title") {
			return v.Product.Name
		}
		return v.Product.Name + " - " + name
	}
	if name == "" {
		return v.SKU
	}
	return name
}

// ProductImage is a gallery image attached to a product
type ProductImage struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	URL       string
	Type      string
	Position  int
}
