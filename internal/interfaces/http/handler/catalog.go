package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	catalogapp "github.com/kctmenswear/storefront/internal/application/catalog"
	"github.com/kctmenswear/storefront/internal/interfaces/http/middleware"
)

// CatalogService is the read side of the product catalog
type CatalogService interface {
	ListProducts(ctx context.Context, req catalogapp.ListProductsRequest) (catalogapp.ListResult[catalogapp.ProductResponse], error)
	GetProduct(ctx context.Context, id uuid.UUID) (*catalogapp.ProductResponse, error)
	ListEnhancedProducts(ctx context.Context, req catalogapp.ListProductsRequest) (catalogapp.ListResult[catalogapp.EnhancedProductResponse], error)
	Categories(ctx context.Context) ([]catalogapp.CategoryResponse, error)
}

// CatalogHandler serves the public catalog endpoints
type CatalogHandler struct {
	BaseHandler
	catalog CatalogService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListProducts godoc
// @ID           listCatalogProducts
// @Summary      List products
// @Description  Returns active products with their variants, paginated and filtered by category or search term
// @Tags         catalog
// @Produce      json
// @Param        page        query int    false "Page number" default(1)
// @Param        page_size   query int    false "Page size" default(20)
// @Param        category    query string false "Category filter"
// @Param        subcategory query string false "Subcategory filter"
// @Param        search      query string false "Name search"
// @Success      200 {object} dto.Response{data=[]catalog.ProductResponse}
// @Failure      400 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /catalog/products [get]
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var req catalogapp.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.catalog.ListProducts(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize, result.TotalPages)
}

// GetProduct godoc
// @ID           getCatalogProduct
// @Summary      Get product by ID
// @Description  Returns one active product with its variants
// @Tags         catalog
// @Produce      json
// @Param        id path string true "Product ID" format(uuid)
// @Success      200 {object} dto.Response{data=catalog.ProductResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /catalog/products/{id} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID")
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// ListEnhancedProducts godoc
// @ID           listCatalogEnhancedProducts
// @Summary      List enhanced products
// @Description  Returns products with pricing summaries and images
// @Tags         catalog
// @Produce      json
// @Param        page        query int    false "Page number" default(1)
// @Param        page_size   query int    false "Page size" default(20)
// @Param        category    query string false "Category filter"
// @Param        subcategory query string false "Subcategory filter"
// @Param        search      query string false "Name search"
// @Success      200 {object} dto.Response{data=[]catalog.EnhancedProductResponse}
// @Failure      400 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /catalog/enhanced-products [get]
func (h *CatalogHandler) ListEnhancedProducts(c *gin.Context) {
	var req catalogapp.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.catalog.ListEnhancedProducts(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize, result.TotalPages)
}

// Categories godoc
// @ID           listCatalogCategories
// @Summary      List categories
// @Description  Returns category and subcategory product counts
// @Tags         catalog
// @Produce      json
// @Success      200 {object} dto.Response{data=[]catalog.CategoryResponse}
// @Failure      500 {object} dto.Response
// @Router       /catalog/categories [get]
func (h *CatalogHandler) Categories(c *gin.Context) {
	categories, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, categories)
}
