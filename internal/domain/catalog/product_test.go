package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestVariant_HasRealSize(t *testing.T) {
	tests := map[string]bool{
		"42R":      true,
		"M":        true,
		"One Size": false,
		"one size": false,
		"":         false,
		"  ":       false,
	}
	for size, want := range tests {
		v := Variant{Size: size}
		assert.Equal(t, want, v.HasRealSize(), size)
	}
}

func TestVariant_PriceInRange(t *testing.T) {
	tests := []struct {
		price string
		want  bool
	}{
		{"0.49", false},
		{"0.50", true},
		{"299.99", true},
		{"10000", true},
		{"10000.01", false},
	}
	for _, tt := range tests {
		v := Variant{Price: decimal.RequireFromString(tt.price)}
		assert.Equal(t, tt.want, v.PriceInRange(), tt.price)
	}
}

func TestVariant_DisplayName(t *testing.T) {
	p := &Product{Name: "Navy Suit"}

	assert.Equal(t, "Navy Suit - 40R", (&Variant{Title: "40R", Product: p}).DisplayName())
	assert.Equal(t, "Navy Suit", (&Variant{Title: "Default Title", Product: p}).DisplayName())
	assert.Equal(t, "40R", (&Variant{Title: "40R"}).DisplayName())
	assert.Equal(t, "SKU-1", (&Variant{SKU: "SKU-1"}).DisplayName())
}

func TestProduct_GalleryImages(t *testing.T) {
	p := Product{
		PrimaryImage: "a.jpg",
		Images: []ProductImage{
			{URL: "a.jpg"},
			{URL: "b.jpg"},
			{URL: ""},
		},
	}
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, p.GalleryImages())

	_, ok := (&Product{}).FirstVariant()
	assert.False(t, ok)
}

func TestImageSet_HeroURL(t *testing.T) {
	assert.Equal(t, "", ImageSet{}.HeroURL())
	assert.Equal(t, "hero.jpg", ImageSet{Hero: &ImageRef{URL: "hero.jpg"}}.HeroURL())
}
