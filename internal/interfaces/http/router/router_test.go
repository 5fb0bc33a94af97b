package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	r.Register(NewDomainGroup("test", "/test").GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	}))
	assert.Len(t, r.registrars, 1)
	r.Setup()

	w := serve(engine, http.MethodGet, "/api/v1/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("catalog", "/catalog")
		assert.Equal(t, "catalog", g.Name())
		assert.Equal(t, "/catalog", g.Prefix())
	})

	t.Run("registers methods", func(t *testing.T) {
		engine := gin.New()
		NewDomainGroup("test", "/test").
			GET("/items", func(c *gin.Context) { c.String(http.StatusOK, "list") }).
			POST("/items", func(c *gin.Context) { c.String(http.StatusCreated, "created") }).
			Handle(http.MethodDelete, "/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) }).
			RegisterRoutes(engine.Group("/api/v1"))

		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/test/items").Code)
		assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/test/items").Code)
		assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodDelete, "/api/v1/test/items/1").Code)
	})

	t.Run("applies middleware to subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("auth", "/auth").Use(func(c *gin.Context) {
			c.Header("X-Outer", "yes")
		})
		g.GET("/open", func(c *gin.Context) { c.String(http.StatusOK, "open") })
		g.Group("inner", "/inner").
			Use(func(c *gin.Context) { c.Header("X-Inner", "yes") }).
			GET("", func(c *gin.Context) { c.String(http.StatusOK, "inner") })
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := serve(engine, http.MethodGet, "/api/v1/auth/inner")
		assert.Equal(t, "inner", w.Body.String())
		assert.Equal(t, "yes", w.Header().Get("X-Outer"))
		assert.Equal(t, "yes", w.Header().Get("X-Inner"))

		w = serve(engine, http.MethodGet, "/api/v1/auth/open")
		assert.Equal(t, "yes", w.Header().Get("X-Outer"))
		assert.Empty(t, w.Header().Get("X-Inner"))
	})
}

func TestMultipleDomainGroups(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	catalog := NewDomainGroup("catalog", "/catalog").GET("/products", func(c *gin.Context) {
		c.String(http.StatusOK, "products")
	})
	checkout := NewDomainGroup("checkout", "/checkout").POST("/sessions", func(c *gin.Context) {
		c.String(http.StatusOK, "session")
	})
	r.Register(catalog).Register(checkout).Setup()

	assert.Equal(t, "products", serve(engine, http.MethodGet, "/api/v1/catalog/products").Body.String())
	assert.Equal(t, "session", serve(engine, http.MethodPost, "/api/v1/checkout/sessions").Body.String())
}
