package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ImageRef is one image in an enhanced product's image set
type ImageRef struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// ImageSet is the images JSON document on products_enhanced
type ImageSet struct {
	Hero    *ImageRef  `json:"hero,omitempty"`
	Gallery []ImageRef `json:"gallery,omitempty"`
}

// HeroURL returns the hero image URL or ""
func (s ImageSet) HeroURL() string {
	if s.Hero == nil {
		return ""
	}
	return s.Hero.URL
}

// EnhancedProduct is a row of the enriched product table
type EnhancedProduct struct {
	ID          uuid.UUID
	Name        string
	Category    string
	Subcategory string
	Status      ProductStatus
	Images      ImageSet
	SizeOptions []string
	BasePrice   decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CategoryCount is the number of products in a category/subcategory pair
type CategoryCount struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Count       int64  `json:"count"`
}
