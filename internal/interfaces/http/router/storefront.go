package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
	"github.com/kctmenswear/storefront/internal/infrastructure/logger"
	"github.com/kctmenswear/storefront/internal/interfaces/http/dto"
	"github.com/kctmenswear/storefront/internal/interfaces/http/handler"
	"github.com/kctmenswear/storefront/internal/interfaces/http/middleware"
)

// Default checkout limiter: 10 sessions per minute per client
const (
	defaultCheckoutRequests = 10
	defaultCheckoutWindow   = time.Minute
)

// Handlers are the storefront endpoint handlers
type Handlers struct {
	Catalog      *handler.CatalogHandler
	Checkout     *handler.CheckoutHandler
	Webhook      *handler.StripeWebhookHandler
	Verification *handler.VerificationHandler
	System       *handler.SystemHandler
}

// Config holds everything needed to build the storefront engine
type Config struct {
	HTTP         config.HTTPConfig
	Checkout     config.CheckoutConfig
	ServiceName  string
	Tracing      bool
	Meter        metric.Meter // nil disables HTTP metrics
	Tokens       middleware.TokenValidator
	Handlers     Handlers
	Logger       *zap.Logger
	SkipLogPaths []string
	SecurityHSTS bool
}

// Storefront is the configured HTTP engine. Stop releases its rate limiters.
type Storefront struct {
	Engine   *gin.Engine
	limiters []*middleware.RateLimiter
}

// Stop ends background rate limiter cleanup
func (s *Storefront) Stop() {
	for _, l := range s.limiters {
		l.Stop()
	}
}

// NewStorefront builds the gin engine with the global middleware chain and
// all storefront routes under /api/v1.
func NewStorefront(cfg Config) (*Storefront, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.Tokens == nil {
		return nil, errors.New("router: token validator is required")
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	engine.HandleMethodNotAllowed = true

	sf := &Storefront{Engine: engine}

	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.SecurityHSTS

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{Enabled: cfg.Tracing, ServiceName: cfg.ServiceName}),
		middleware.SpanErrorMarker(),
		middleware.SpanAttributes(),
		logger.GinMiddleware(log, cfg.SkipLogPaths...),
		middleware.HTTPMetrics(cfg.Meter, log),
		middleware.Secure(security),
		middleware.CORSWithConfig(cors),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeBadRequest, "Method not allowed", middleware.GetRequestID(c)))
	})

	h := cfg.Handlers
	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}

	optionalAuth := middleware.OptionalJWTAuth(cfg.Tokens)
	requireAuth := middleware.JWTAuth(cfg.Tokens, log)

	var general []gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled && cfg.HTTP.RateLimitRequests > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		sf.limiters = append(sf.limiters, limiter)
		general = append(general, middleware.RateLimit(limiter))
	}

	checkoutRequests, checkoutWindow := cfg.Checkout.RateLimitRequests, cfg.Checkout.RateLimitWindow
	if checkoutRequests <= 0 {
		checkoutRequests = defaultCheckoutRequests
	}
	if checkoutWindow <= 0 {
		checkoutWindow = defaultCheckoutWindow
	}
	checkoutLimiter := middleware.NewRateLimiter(checkoutRequests, checkoutWindow)
	sf.limiters = append(sf.limiters, checkoutLimiter)

	maxBody := cfg.HTTP.MaxBodySize
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	webhookMax := cfg.HTTP.WebhookMaxBodySize
	if webhookMax <= 0 || webhookMax > middleware.WebhookMaxBodySize {
		webhookMax = middleware.WebhookMaxBodySize
	}

	r := NewRouter(engine)

	if h.System != nil {
		r.Register(NewDomainGroup("system", "/system").
			GET("/info", h.System.GetSystemInfo).
			GET("/ping", h.System.Ping))
	}

	if h.Catalog != nil {
		r.Register(NewDomainGroup("catalog", "/catalog").
			Use(optionalAuth).
			Use(general...).
			GET("/products", h.Catalog.ListProducts).
			GET("/products/:id", h.Catalog.GetProduct).
			GET("/enhanced-products", h.Catalog.ListEnhancedProducts).
			GET("/categories", h.Catalog.Categories))
	}

	if h.Checkout != nil {
		r.Register(NewDomainGroup("checkout", "/checkout").
			Use(optionalAuth, middleware.BodyLimit(maxBody)).
			Use(general...).
			POST("/sessions", middleware.RateLimit(checkoutLimiter), h.Checkout.CreateSession))
	}

	if h.Webhook != nil {
		// Stripe calls this without a session; the signature is the credential
		r.Register(NewDomainGroup("webhooks", "/webhooks").
			POST("/stripe", middleware.BodyLimit(webhookMax), h.Webhook.HandleStripeWebhook))
	}

	if h.Verification != nil {
		verify := NewDomainGroup("email-verification", "/auth/email-verification").
			Use(middleware.BodyLimit(maxBody)).
			Use(general...).
			POST("/verify", h.Verification.Verify)
		verify.Group("email-verification-session", "").
			Use(requireAuth).
			GET("", h.Verification.Status).
			GET("/banner", h.Verification.Banner).
			POST("/send", h.Verification.Send)
		r.Register(verify)
	}

	r.Setup()

	log.Info("HTTP routes registered", zap.Int("routes", len(engine.Routes())))
	return sf, nil
}
