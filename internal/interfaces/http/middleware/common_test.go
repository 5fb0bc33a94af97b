package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func corsRouter(cfg CORSConfig) *gin.Engine {
	router := gin.New()
	router.Use(CORSWithConfig(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func corsRequest(router *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/test", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORSWithConfig(t *testing.T) {
	t.Run("empty allowlist sets no headers", func(t *testing.T) {
		router := corsRouter(DefaultCORSConfig())

		w := corsRequest(router, http.MethodGet, "http://malicious.com")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("same-origin request passes", func(t *testing.T) {
		w := corsRequest(corsRouter(DefaultCORSConfig()), http.MethodGet, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("allows listed origins", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"https://kctmenswear.com", "http://localhost:3000"}
		router := corsRouter(cfg)

		for _, origin := range cfg.AllowOrigins {
			w := corsRequest(router, http.MethodGet, origin)
			assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Request-ID")
		}
	})

	t.Run("rejects unlisted origin", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"https://kctmenswear.com"}

		w := corsRequest(corsRouter(cfg), http.MethodGet, "https://evil.example")

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard never sends credentials", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"*"}

		w := corsRequest(corsRouter(cfg), http.MethodGet, "https://anything.example")

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight ends with 204", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"https://kctmenswear.com"}
		router := corsRouter(cfg)

		w := corsRequest(router, http.MethodOptions, "https://kctmenswear.com")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))

		w = corsRequest(router, http.MethodOptions, "https://evil.example")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSMaxAgeHeaderFormat(t *testing.T) {
	testCases := []struct {
		duration time.Duration
		expected string
	}{
		{time.Hour, "3600"},
		{24 * time.Hour, "86400"},
		{30 * time.Second, "30"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			cfg := CORSConfig{AllowOrigins: []string{"http://localhost:3000"}, MaxAge: tc.duration}
			w := corsRequest(corsRouter(cfg), http.MethodGet, "http://localhost:3000")
			assert.Equal(t, tc.expected, w.Header().Get("Access-Control-Max-Age"))
		})
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	send := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if header != "" {
			req.Header.Set(RequestIDHeader, header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("generates request ID", func(t *testing.T) {
		w := send("")
		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("uses provided request ID", func(t *testing.T) {
		w := send("test-request-id")
		assert.Equal(t, "test-request-id", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "test-request-id", w.Body.String())
	})

	t.Run("replaces oversized request ID", func(t *testing.T) {
		long := strings.Repeat("a", MaxRequestIDLength+1)
		w := send(long)
		assert.NotEqual(t, long, w.Header().Get(RequestIDHeader))
		assert.LessOrEqual(t, len(w.Header().Get(RequestIDHeader)), MaxRequestIDLength)
	})
}

func TestGetRequestID_FromHeaderWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set(RequestIDHeader, "from-header")

	assert.Equal(t, "from-header", GetRequestID(c))
}

func TestSecure(t *testing.T) {
	secureRequest := func(cfg SecurityConfig) http.Header {
		router := gin.New()
		router.Use(Secure(cfg))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		return w.Header()
	}

	t.Run("default configuration", func(t *testing.T) {
		h := secureRequest(DefaultSecurityConfig())

		assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
		assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
		assert.Contains(t, h.Get("Content-Security-Policy"), "frame-ancestors 'none'")
		assert.Empty(t, h.Get("Strict-Transport-Security"))
	})

	t.Run("HSTS enabled", func(t *testing.T) {
		cfg := DefaultSecurityConfig()
		cfg.HSTSEnabled = true

		h := secureRequest(cfg)

		assert.Equal(t, "max-age=31536000; includeSubDomains", h.Get("Strict-Transport-Security"))
	})

	t.Run("empty CSP omits header", func(t *testing.T) {
		h := secureRequest(SecurityConfig{})
		assert.Empty(t, h.Get("Content-Security-Policy"))
	})
}
