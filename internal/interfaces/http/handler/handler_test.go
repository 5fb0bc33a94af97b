package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	catalogapp "github.com/kctmenswear/storefront/internal/application/catalog"
	"github.com/kctmenswear/storefront/internal/application/checkout"
	"github.com/kctmenswear/storefront/internal/application/payment"
	"github.com/kctmenswear/storefront/internal/application/verification"
	"github.com/kctmenswear/storefront/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListProducts(ctx context.Context, req catalogapp.ListProductsRequest) (catalogapp.ListResult[catalogapp.ProductResponse], error) {
	args := m.Called(ctx, req)
	return args.Get(0).(catalogapp.ListResult[catalogapp.ProductResponse]), args.Error(1)
}

func (m *MockCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*catalogapp.ProductResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogapp.ProductResponse), args.Error(1)
}

func (m *MockCatalogService) ListEnhancedProducts(ctx context.Context, req catalogapp.ListProductsRequest) (catalogapp.ListResult[catalogapp.EnhancedProductResponse], error) {
	args := m.Called(ctx, req)
	return args.Get(0).(catalogapp.ListResult[catalogapp.EnhancedProductResponse]), args.Error(1)
}

func (m *MockCatalogService) Categories(ctx context.Context) ([]catalogapp.CategoryResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalogapp.CategoryResponse), args.Error(1)
}

type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) CreateCheckout(ctx context.Context, req checkout.Request) (*checkout.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Result), args.Error(1)
}

type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*payment.WebhookResult, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WebhookResult), args.Error(1)
}

type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) Status(ctx context.Context, userID uuid.UUID) (*verification.Status, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*verification.Status), args.Error(1)
}

func (m *MockVerificationService) Banner(ctx context.Context, userID uuid.UUID) (*verification.Banner, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*verification.Banner), args.Error(1)
}

func (m *MockVerificationService) SendVerificationEmail(ctx context.Context, userID uuid.UUID, origin string) (*verification.SendResult, error) {
	args := m.Called(ctx, userID, origin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*verification.SendResult), args.Error(1)
}

func (m *MockVerificationService) VerifyEmail(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

// withUser simulates the JWT middleware for an authenticated user
func withUser(id uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.JWTUserIDKey, id.String())
	}
}

func newTestRouter(pre ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(pre...)
	return router
}

func performRequest(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse[T any](t *testing.T, w *httptest.ResponseRecorder) APIResponse[T] {
	t.Helper()
	var resp APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
