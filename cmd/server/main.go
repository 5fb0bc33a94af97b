package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	catalogapp "github.com/kctmenswear/storefront/internal/application/catalog"
	"github.com/kctmenswear/storefront/internal/application/checkout"
	"github.com/kctmenswear/storefront/internal/application/payment"
	"github.com/kctmenswear/storefront/internal/application/verification"
	"github.com/kctmenswear/storefront/internal/infrastructure/auth"
	"github.com/kctmenswear/storefront/internal/infrastructure/billing"
	"github.com/kctmenswear/storefront/internal/infrastructure/cache"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
	"github.com/kctmenswear/storefront/internal/infrastructure/email"
	"github.com/kctmenswear/storefront/internal/infrastructure/event"
	"github.com/kctmenswear/storefront/internal/infrastructure/job"
	"github.com/kctmenswear/storefront/internal/infrastructure/logger"
	"github.com/kctmenswear/storefront/internal/infrastructure/persistence"
	"github.com/kctmenswear/storefront/internal/infrastructure/scheduler"
	"github.com/kctmenswear/storefront/internal/infrastructure/telemetry"
	"github.com/kctmenswear/storefront/internal/interfaces/http/handler"
	"github.com/kctmenswear/storefront/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			KCT Menswear Storefront API
//	@version		1.0
//	@description	Catalog, checkout and email verification API for the KCT Menswear storefront

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	atomic, err := logger.NewAtomic(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, atomic); err != nil {
		atomic.Error("Server exited with error", zap.Error(err))
		_ = atomic.Sync()
		os.Exit(1)
	}
	_ = atomic.Sync()
}

// closer is a named shutdown step, run in reverse order of registration
type closer struct {
	name string
	fn   func(context.Context) error
}

func run(cfg *config.Config, atomic *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(shutdownCtx); err != nil {
				atomic.Warn("Shutdown step failed", zap.String("step", closers[i].name), zap.Error(err))
			}
		}
	}()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, atomic.Logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	closers = append(closers, closer{"telemetry", providers.Shutdown})

	log := providers.Logs.Bridge(atomic.Logger)
	log.Info("Starting KCT storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Config hot reload only touches the log level
	if watcher, err := config.Watch("", 0, log, func(next *config.Config) {
		atomic.SetLevel(next.Log.Level)
	}); err == nil {
		closers = append(closers, closer{"config watcher", func(context.Context) error {
			watcher.Stop()
			return nil
		}})
	} else {
		log.Debug("Config file watch disabled", zap.Error(err))
	}

	db, err := persistence.NewDatabase(ctx, &cfg.Database, cfg.App.Env,
		persistence.WithLogger(log),
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithSlowThreshold(cfg.Telemetry.SlowQuery))),
	)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	closers = append(closers, closer{"database", func(context.Context) error { return db.Close() }})
	if err := telemetry.NewDBTracing(cfg.Telemetry.SlowQuery, log).Register(db.DB); err != nil {
		return fmt.Errorf("database tracing: %w", err)
	}
	db.StartHealthCheck(ctx, log)
	log.Info("Database connected", zap.String("profile", db.Profile().Name))

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, closer{"redis", func(context.Context) error { return rdb.Close() }})
	}

	replays, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.Redis.Enabled || !cfg.IsProduction()),
	).CreateStore()
	if err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}

	tiered := cache.NewTieredCacheFromConfig(cfg.Cache, rdb, log)
	closers = append(closers, closer{"cache", func(context.Context) error { return tiered.Close() }})

	invalidatorOpts := []cache.InvalidatorOption{cache.WithInvalidatorLogger(log)}
	if rdb != nil {
		broadcaster := cache.NewBroadcaster(rdb, cache.WithBroadcasterLogger(log))
		invalidatorOpts = append(invalidatorOpts, cache.WithBroadcaster(broadcaster))
		go func() {
			err := broadcaster.Subscribe(ctx, func(prefix string) {
				tiered.InvalidateLocal(context.Background(), prefix)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("Cache invalidation subscription ended", zap.Error(err))
			}
		}()
		closers = append(closers, closer{"cache broadcaster", func(context.Context) error { return broadcaster.Close() }})
	}
	invalidator := cache.NewInvalidator(tiered, cfg.Cache.InvalidateDelay, invalidatorOpts...)
	closers = append(closers, closer{"cache invalidator", func(context.Context) error {
		invalidator.Close()
		return nil
	}})

	// Repositories
	products := persistence.NewGormProductRepository(db.DB)
	variants := persistence.NewGormVariantRepository(db.DB)
	orders := persistence.NewGormOrderRepository(db.DB)
	sessions := persistence.NewGormCheckoutSessionRepository(db.DB)
	reservations := persistence.NewGormReservationRepository(db.DB)
	customers := persistence.NewGormCustomerRepository(db.DB)
	users := persistence.NewGormUserRepository(db.DB)
	webhookLogs := persistence.NewGormWebhookLogRepository(db.DB)
	emailLogs := persistence.NewGormEmailLogRepository(db.DB)

	// Email delivery runs on asynq when Redis is available, inline otherwise
	mailer, err := email.NewClient(cfg.Email, email.WithLogger(log))
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	emailHandlers := job.NewHandlers(mailer, emailLogs, log)
	var queue job.Enqueuer = job.NewInlineQueue(emailHandlers)
	if rdb != nil && cfg.Queue.Enabled {
		jobs := job.NewJobService(rdb, cfg.Queue, emailHandlers, log)
		if err := jobs.Start(); err != nil {
			return fmt.Errorf("job server: %w", err)
		}
		closers = append(closers, closer{"job server", func(context.Context) error {
			jobs.Stop()
			return nil
		}})
		queue = jobs
	}

	stripe, err := billing.NewStripeAdapter(billing.NewStripeConfig(cfg.Stripe), log)
	if err != nil {
		return fmt.Errorf("stripe: %w", err)
	}

	bus := event.NewInMemoryEventBus(log)
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	closers = append(closers, closer{"event bus", bus.Stop})
	payment.NewOrderPaidSubscribers(emailLogs, queue, invalidator, replays, providers.Metrics, log).Register(bus)

	tokens := auth.NewJWTService(cfg.JWT, cfg.Verification.TokenTTL)

	catalogSvc := catalogapp.NewProductService(products, tiered, log)
	checkoutSvc := checkout.NewService(checkout.ServiceConfig{
		Gateway:      stripe,
		Variants:     variants,
		Reservations: reservations,
		Sessions:     sessions,
		Checkout:     cfg.Checkout,
		Metrics:      providers.Metrics,
		Logger:       log,
	})
	webhookSvc := payment.NewWebhookService(payment.WebhookServiceConfig{
		Verifier:     stripe,
		Orders:       orders,
		Sessions:     sessions,
		Reservations: reservations,
		Customers:    customers,
		WebhookLogs:  webhookLogs,
		Replays:      replays,
		Events:       bus,
		Metrics:      providers.Metrics,
		Logger:       log,
	})
	verificationSvc := verification.NewService(verification.ServiceConfig{
		Users:    users,
		Logs:     emailLogs,
		Queue:    queue,
		Tokens:   tokens,
		Replays:  replays,
		Origins:  checkout.HostAllowlist(cfg.Checkout.AllowedHosts),
		SiteURL:  cfg.App.SiteURL,
		TokenTTL: cfg.Verification.TokenTTL,
		Metrics:  providers.Metrics,
		Logger:   log,
	})

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(cfg.Scheduler.JobTimeout, log)
		maintenance := &scheduler.Maintenance{
			Reservations: reservations,
			Sessions:     sessions,
			WebhookLogs:  webhookLogs,
			EmailLogs:    emailLogs,
			Logger:       log,
		}
		if err := scheduler.RegisterMaintenance(sched, cfg.Scheduler, maintenance); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		closers = append(closers, closer{"scheduler", sched.Stop})
	}

	sf, err := router.NewStorefront(router.Config{
		HTTP:         cfg.HTTP,
		Checkout:     cfg.Checkout,
		ServiceName:  cfg.Telemetry.ServiceName,
		Tracing:      cfg.Telemetry.Enabled,
		Meter:        providers.Meter.Meter(telemetry.TracerName),
		Tokens:       tokens,
		Logger:       log,
		SkipLogPaths: []string{"/health"},
		SecurityHSTS: cfg.IsProduction(),
		Handlers: router.Handlers{
			Catalog:      handler.NewCatalogHandler(catalogSvc),
			Checkout:     handler.NewCheckoutHandler(checkoutSvc),
			Webhook:      handler.NewStripeWebhookHandler(webhookSvc),
			Verification: handler.NewVerificationHandler(verificationSvc),
			System:       handler.NewSystemHandler(cfg.App.Name, version, db),
		},
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}
	closers = append(closers, closer{"rate limiters", func(context.Context) error {
		sf.Stop()
		return nil
	}})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        sf.Engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited gracefully")
	return nil
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.HTTP.ShutdownTimeout > 0 {
		return cfg.HTTP.ShutdownTimeout
	}
	return 30 * time.Second
}
