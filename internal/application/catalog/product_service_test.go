package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kctmenswear/storefront/internal/domain/catalog"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/cache"
)

// MockProductRepository is a mock implementation of ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]catalog.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepository) ListEnhanced(ctx context.Context, filter catalog.ProductFilter) ([]catalog.EnhancedProduct, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]catalog.EnhancedProduct), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepository) CategoryCounts(ctx context.Context) ([]catalog.CategoryCount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]catalog.CategoryCount), args.Error(1)
}

func (m *MockProductRepository) ListActiveForExport(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func newCachedService(t *testing.T, repo catalog.ProductRepository) *ProductService {
	t.Helper()
	c := cache.NewTieredCache(cache.NewMemoryStore())
	t.Cleanup(func() { _ = c.Close() })
	return NewProductService(repo, c, nil)
}

func sampleProduct() catalog.Product {
	id := uuid.New()
	return catalog.Product{
		ID:           id,
		Name:         "Navy Suit",
		Category:     "Suits",
		Subcategory:  "Two Piece",
		Status:       catalog.ProductStatusActive,
		PrimaryImage: "https://cdn.example/navy.jpg",
		Variants: []catalog.Variant{
			{ID: uuid.New(), ProductID: id, Title: "40R", Size: "40R", Price: decimal.RequireFromString("299.99"), InventoryCount: 4},
		},
		Images: []catalog.ProductImage{
			{URL: "https://cdn.example/navy.jpg", Position: 0},
			{URL: "https://cdn.example/navy-back.jpg", Position: 1},
		},
	}
}

func TestListProducts_CachesPages(t *testing.T) {
	repo := new(MockProductRepository)
	svc := newCachedService(t, repo)
	p := sampleProduct()

	repo.On("List", mock.Anything, mock.MatchedBy(func(f catalog.ProductFilter) bool {
		return f.Page == 1 && f.PageSize == 20 && f.Category == "Suits" && f.Status == catalog.ProductStatusActive
	})).Return([]catalog.Product{p}, int64(41), nil).Once()

	req := ListProductsRequest{Category: "Suits"}
	first, err := svc.ListProducts(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.ListProducts(context.Background(), req)
	require.NoError(t, err)

	repo.AssertNumberOfCalls(t, "List", 1)
	assert.Equal(t, int64(41), first.Total)
	assert.Equal(t, 3, first.TotalPages)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "Navy Suit", second.Items[0].Name)
	assert.Equal(t, []string{"https://cdn.example/navy.jpg", "https://cdn.example/navy-back.jpg"}, second.Items[0].Images)
	assert.True(t, second.Items[0].Variants[0].Price.Equal(decimal.RequireFromString("299.99")))
}

func TestListProducts_PageSizeClamped(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewProductService(repo, nil, nil)

	repo.On("List", mock.Anything, mock.MatchedBy(func(f catalog.ProductFilter) bool {
		return f.PageSize == shared.MaxPageSize && f.Page == 1
	})).Return([]catalog.Product{}, int64(0), nil)

	res, err := svc.ListProducts(context.Background(), ListProductsRequest{PageSize: 500, Page: -3})

	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Equal(t, 0, res.TotalPages)
}

func TestGetProduct(t *testing.T) {
	repo := new(MockProductRepository)
	svc := newCachedService(t, repo)
	p := sampleProduct()
	repo.On("FindByID", mock.Anything, p.ID).Return(&p, nil).Once()

	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestGetProduct_DraftIsNotFound(t *testing.T) {
	repo := new(MockProductRepository)
	svc := newCachedService(t, repo)
	p := sampleProduct()
	p.Status = catalog.ProductStatusDraft
	repo.On("FindByID", mock.Anything, p.ID).Return(&p, nil)

	_, err := svc.GetProduct(context.Background(), p.ID)

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListEnhancedProducts(t *testing.T) {
	repo := new(MockProductRepository)
	svc := newCachedService(t, repo)
	ep := catalog.EnhancedProduct{
		ID:        uuid.New(),
		Name:      "Velvet Blazer",
		Category:  "Blazers",
		Status:    catalog.ProductStatusActive,
		Images:    catalog.ImageSet{Hero: &catalog.ImageRef{URL: "https://cdn.example/hero.jpg"}},
		BasePrice: decimal.RequireFromString("249.00"),
	}
	repo.On("ListEnhanced", mock.Anything, mock.Anything).Return([]catalog.EnhancedProduct{ep}, int64(1), nil)

	res, err := svc.ListEnhancedProducts(context.Background(), ListProductsRequest{})

	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "https://cdn.example/hero.jpg", res.Items[0].Images.HeroURL())
	assert.Equal(t, []string{}, res.Items[0].SizeOptions)
}

func TestListProducts_ErrorNotCached(t *testing.T) {
	repo := new(MockProductRepository)
	svc := newCachedService(t, repo)
	repo.On("List", mock.Anything, mock.Anything).Return([]catalog.Product(nil), int64(0), errors.New("db down")).Once()
	repo.On("List", mock.Anything, mock.Anything).Return([]catalog.Product{}, int64(0), nil).Once()

	_, err := svc.ListProducts(context.Background(), ListProductsRequest{})
	require.Error(t, err)

	_, err = svc.ListProducts(context.Background(), ListProductsRequest{})
	require.NoError(t, err)
}

func TestCategories(t *testing.T) {
	repo := new(MockProductRepository)
	svc := newCachedService(t, repo)
	repo.On("CategoryCounts", mock.Anything).Return([]catalog.CategoryCount{
		{Category: "Blazers", Subcategory: "Velvet", Count: 3},
		{Category: "Suits", Subcategory: "", Count: 2},
		{Category: "Suits", Subcategory: "Three Piece", Count: 4},
		{Category: "Suits", Subcategory: "Two Piece", Count: 6},
		{Category: "", Subcategory: "Loose", Count: 9},
	}, nil).Once()

	cats, err := svc.Categories(context.Background())
	require.NoError(t, err)
	_, err = svc.Categories(context.Background())
	require.NoError(t, err)

	repo.AssertNumberOfCalls(t, "CategoryCounts", 1)
	assert.Equal(t, []CategoryResponse{
		{Name: "Suits", Count: 12, Subcategories: []SubcategoryResponse{
			{Name: "Two Piece", Count: 6},
			{Name: "Three Piece", Count: 4},
		}},
		{Name: "Blazers", Count: 3, Subcategories: []SubcategoryResponse{
			{Name: "Velvet", Count: 3},
		}},
	}, cats)
}
