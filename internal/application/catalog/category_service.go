package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kctmenswear/storefront/internal/domain/catalog"
	"github.com/kctmenswear/storefront/internal/infrastructure/cache"
)

// Categories returns active product counts by category, largest first, each
// with its subcategory counts. Products without a subcategory only count
// towards their category.
func (s *ProductService) Categories(ctx context.Context) ([]CategoryResponse, error) {
	return cached(ctx, s, cache.TypeCategories, cache.Key(cache.TypeCategories, "counts"), func(ctx context.Context) ([]CategoryResponse, error) {
		counts, err := s.products.CategoryCounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count categories: %w", err)
		}
		return groupCategories(counts), nil
	})
}

func groupCategories(counts []catalog.CategoryCount) []CategoryResponse {
	byName := make(map[string]*CategoryResponse)
	order := make([]string, 0)
	for _, c := range counts {
		name := strings.TrimSpace(c.Category)
		if name == "" {
			continue
		}
		cat, ok := byName[name]
		if !ok {
			cat = &CategoryResponse{Name: name, Subcategories: []SubcategoryResponse{}}
			byName[name] = cat
			order = append(order, name)
		}
		cat.Count += c.Count
		if sub := strings.TrimSpace(c.Subcategory); sub != "" {
			cat.Subcategories = append(cat.Subcategories, SubcategoryResponse{Name: sub, Count: c.Count})
		}
	}

	out := make([]CategoryResponse, 0, len(order))
	for _, name := range order {
		cat := byName[name]
		sort.SliceStable(cat.Subcategories, func(i, j int) bool {
			return cat.Subcategories[i].Count > cat.Subcategories[j].Count
		})
		out = append(out, *cat)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
