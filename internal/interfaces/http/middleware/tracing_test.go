package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kctmenswear/storefront/internal/infrastructure/telemetry"
)

// setupTestTracer sets up a test tracer provider and returns the span recorder.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	return sr
}

func tracedRouter(status int, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Tracing(TracingConfig{Enabled: true, ServiceName: "test-service"}), SpanErrorMarker())
	router.Use(extra...)
	router.Use(SpanAttributes())
	router.GET("/api/v1/catalog/products/:id", func(c *gin.Context) {
		c.JSON(status, gin.H{"ok": status < 400})
	})
	return router
}

func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func attrValue(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(Tracing(TracingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_SpanCarriesRouteAndRequestID(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(http.StatusOK)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products/abc", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	router.ServeHTTP(w, req)

	span := onlySpan(t, sr)
	assert.Contains(t, span.Name(), "/api/v1/catalog/products/:id")
	v, ok := attrValue(span, "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-123", v.AsString())
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestTracing_UserAttribute(t *testing.T) {
	sr := setupTestTracer(t)
	svc := newTestJWTService(time.Minute)
	userID := uuid.New()
	token, _, err := svc.GenerateAccessToken(userID, "c@example.com")
	require.NoError(t, err)
	router := tracedRouter(http.StatusOK, OptionalJWTAuth(svc))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products/abc", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	router.ServeHTTP(httptest.NewRecorder(), req)

	v, ok := attrValue(onlySpan(t, sr), telemetry.AttrUserID)
	require.True(t, ok)
	assert.Equal(t, userID.String(), v.AsString())
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantError bool
		wantAttr  bool
	}{
		{"success leaves span untouched", http.StatusOK, false, false},
		{"client error records status", http.StatusNotFound, false, true},
		{"conflict records status", http.StatusConflict, false, true},
		{"server error marks span failed", http.StatusInternalServerError, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)
			router := tracedRouter(tt.status)

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products/abc", nil))

			span := onlySpan(t, sr)
			assert.Equal(t, tt.wantError, span.Status().Code == codes.Error)
			v, ok := attrValue(span, "http.status_code")
			if tt.wantAttr {
				require.True(t, ok)
				assert.Equal(t, int64(tt.status), v.AsInt64())
			}
		})
	}
}
