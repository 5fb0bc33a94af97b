package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (e.g. KCT_DATABASE_PASSWORD)
const EnvPrefix = "KCT"

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Stripe       StripeConfig
	Email        EmailConfig
	Queue        QueueConfig
	Storage      StorageConfig
	Cache        CacheConfig
	Checkout     CheckoutConfig
	Verification VerificationConfig
	Scheduler    SchedulerConfig
	Telemetry    TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	SiteURL string // public storefront origin, used when a request carries none
}

// DatabaseConfig holds database connection settings.
// Zero pool values are filled from the pool profile for App.Env.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	MaxHeaderBytes     int
	MaxBodySize        int64
	WebhookMaxBodySize int64
	RateLimitEnabled   bool
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	CORSAllowOrigins   []string
	CORSAllowMethods   []string
	CORSAllowHeaders   []string
	TrustedProxies     []string
}

// StripeConfig holds Stripe API settings
type StripeConfig struct {
	SecretKey        string
	PublishableKey   string
	WebhookSecret    string
	WebhookTolerance time.Duration
	Currency         string
}

// EmailConfig holds Resend settings
type EmailConfig struct {
	ResendAPIKey string
	From         string
	ReplyTo      string
}

// QueueConfig holds asynq worker settings
type QueueConfig struct {
	Enabled     bool
	Concurrency int
	MaxRetry    int
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PublicURL       string
}

// CacheConfig holds tiered cache settings
type CacheConfig struct {
	MemoryMaxKeys   int
	MemoryTTL       time.Duration
	CleanupInterval time.Duration
	InvalidateDelay time.Duration
	IdempotencyTTL  time.Duration
}

// CheckoutConfig holds checkout limits
type CheckoutConfig struct {
	AllowedHosts      []string
	ReservationTTL    time.Duration
	SessionTTL        time.Duration
	MaxCartTotal      float64
	MaxItems          int
	MaxQuantity       int
	RateLimitRequests int
	RateLimitWindow   time.Duration
	ShippingCountries []string
}

// VerificationConfig holds email verification settings
type VerificationConfig struct {
	TokenTTL time.Duration
}

// SchedulerConfig holds maintenance cron settings
type SchedulerConfig struct {
	Enabled                 bool
	ReleaseReservationsCron string
	ExpireSessionsCron      string
	PruneLogsCron           string
	LogRetention            time.Duration
	JobTimeout              time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool          // Whether to enable OpenTelemetry
	CollectorEndpoint string        // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64       // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string        // Service name for traces
	Insecure          bool          // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool          // Export storefront metrics over OTLP
	MetricsInterval   time.Duration // Metric export interval
	LogsEnabled       bool          // Bridge zap logs to the OTLP log exporter
	SlowQuery         time.Duration // Queries slower than this are logged and flagged on their span

	// Continuous profiling (Pyroscope)
	ProfilingEnabled  bool
	ProfilingServer   string // e.g. "http://pyroscope:4040"
	ProfilingUser     string // Basic auth for hosted Pyroscope
	ProfilingPassword string
}

// Load loads configuration from the default search paths
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration. Priority (highest to lowest):
// 1. Environment variables with KCT_ prefix (e.g., KCT_DATABASE_PASSWORD)
// 2. .env in the working directory (only for variables not already set)
// 3. the given TOML file, or config.toml in the search paths when path is empty
// 4. Built-in defaults
func LoadFile(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return fromViper(v)
}

// LoadDotEnv loads the given env files (default ".env"). Missing files are ignored
// and variables already present in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}
	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			SiteURL: v.GetString("app.site_url"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("jwt.secret"),
			Issuer:         v.GetString("jwt.issuer"),
			AccessTokenTTL: v.GetDuration("jwt.access_token_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:        v.GetDuration("http.read_timeout"),
			WriteTimeout:       v.GetDuration("http.write_timeout"),
			IdleTimeout:        v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:    v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:     v.GetInt("http.max_header_bytes"),
			MaxBodySize:        v.GetInt64("http.max_body_size"),
			WebhookMaxBodySize: v.GetInt64("http.webhook_max_body_size"),
			RateLimitEnabled:   v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests:  v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:    v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:   v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:   v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:   v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:     v.GetStringSlice("http.trusted_proxies"),
		},
		Stripe: StripeConfig{
			SecretKey:        v.GetString("stripe.secret_key"),
			PublishableKey:   v.GetString("stripe.publishable_key"),
			WebhookSecret:    v.GetString("stripe.webhook_secret"),
			WebhookTolerance: v.GetDuration("stripe.webhook_tolerance"),
			Currency:         v.GetString("stripe.currency"),
		},
		Email: EmailConfig{
			ResendAPIKey: v.GetString("email.resend_api_key"),
			From:         v.GetString("email.from"),
			ReplyTo:      v.GetString("email.reply_to"),
		},
		Queue: QueueConfig{
			Enabled:     v.GetBool("queue.enabled"),
			Concurrency: v.GetInt("queue.concurrency"),
			MaxRetry:    v.GetInt("queue.max_retry"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			PublicURL:       v.GetString("storage.public_url"),
		},
		Cache: CacheConfig{
			MemoryMaxKeys:   v.GetInt("cache.memory_max_keys"),
			MemoryTTL:       v.GetDuration("cache.memory_ttl"),
			CleanupInterval: v.GetDuration("cache.cleanup_interval"),
			InvalidateDelay: v.GetDuration("cache.invalidate_delay"),
			IdempotencyTTL:  v.GetDuration("cache.idempotency_ttl"),
		},
		Checkout: CheckoutConfig{
			AllowedHosts:      v.GetStringSlice("checkout.allowed_hosts"),
			ReservationTTL:    v.GetDuration("checkout.reservation_ttl"),
			SessionTTL:        v.GetDuration("checkout.session_ttl"),
			MaxCartTotal:      v.GetFloat64("checkout.max_cart_total"),
			MaxItems:          v.GetInt("checkout.max_items"),
			MaxQuantity:       v.GetInt("checkout.max_quantity"),
			RateLimitRequests: v.GetInt("checkout.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("checkout.rate_limit_window"),
			ShippingCountries: v.GetStringSlice("checkout.shipping_countries"),
		},
		Verification: VerificationConfig{
			TokenTTL: v.GetDuration("verification.token_ttl"),
		},
		Scheduler: SchedulerConfig{
			Enabled:                 v.GetBool("scheduler.enabled"),
			ReleaseReservationsCron: v.GetString("scheduler.release_reservations_cron"),
			ExpireSessionsCron:      v.GetString("scheduler.expire_sessions_cron"),
			PruneLogsCron:           v.GetString("scheduler.prune_logs_cron"),
			LogRetention:            v.GetDuration("scheduler.log_retention"),
			JobTimeout:              v.GetDuration("scheduler.job_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			SlowQuery:         v.GetDuration("telemetry.slow_query"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
			ProfilingUser:     v.GetString("telemetry.profiling_user"),
			ProfilingPassword: v.GetString("telemetry.profiling_password"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "kct-storefront"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.SiteURL == "" {
		cfg.App.SiteURL = "http://localhost:8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "kct"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "kct-storefront"
	}
	if cfg.JWT.AccessTokenTTL == 0 {
		cfg.JWT.AccessTokenTTL = time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.WebhookMaxBodySize == 0 {
		cfg.HTTP.WebhookMaxBodySize = 64 << 10 // 64KB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// Empty CORS origins means no cross-origin requests until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Stripe-Signature"}
	}
	if cfg.Stripe.WebhookTolerance == 0 {
		cfg.Stripe.WebhookTolerance = 5 * time.Minute
	}
	if cfg.Stripe.Currency == "" {
		cfg.Stripe.Currency = "usd"
	}
	if cfg.Email.From == "" {
		cfg.Email.From = "KCT Menswear <noreply@kctmenswear.com>"
	}
	if cfg.Queue.Concurrency == 0 {
		cfg.Queue.Concurrency = 10
	}
	if cfg.Queue.MaxRetry == 0 {
		cfg.Queue.MaxRetry = 3
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "product-images"
	}
	if cfg.Cache.MemoryMaxKeys == 0 {
		cfg.Cache.MemoryMaxKeys = 10000
	}
	if cfg.Cache.MemoryTTL == 0 {
		cfg.Cache.MemoryTTL = 5 * time.Minute
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = time.Minute
	}
	if cfg.Cache.InvalidateDelay == 0 {
		cfg.Cache.InvalidateDelay = 300 * time.Millisecond
	}
	if cfg.Cache.IdempotencyTTL == 0 {
		cfg.Cache.IdempotencyTTL = 24 * time.Hour
	}
	if len(cfg.Checkout.AllowedHosts) == 0 {
		cfg.Checkout.AllowedHosts = []string{
			"localhost:8080",
			"localhost:5173",
			"kctmenswear.com",
			"admin.kctmenswear.com",
		}
	}
	if cfg.Checkout.ReservationTTL == 0 {
		cfg.Checkout.ReservationTTL = 15 * time.Minute
	}
	if cfg.Checkout.SessionTTL == 0 {
		cfg.Checkout.SessionTTL = 30 * time.Minute
	}
	if cfg.Checkout.MaxCartTotal == 0 {
		cfg.Checkout.MaxCartTotal = 100000
	}
	if cfg.Checkout.MaxItems == 0 {
		cfg.Checkout.MaxItems = 50
	}
	if cfg.Checkout.MaxQuantity == 0 {
		cfg.Checkout.MaxQuantity = 100
	}
	if cfg.Checkout.RateLimitRequests == 0 {
		cfg.Checkout.RateLimitRequests = 10
	}
	if cfg.Checkout.RateLimitWindow == 0 {
		cfg.Checkout.RateLimitWindow = time.Minute
	}
	if len(cfg.Checkout.ShippingCountries) == 0 {
		cfg.Checkout.ShippingCountries = []string{"US", "CA"}
	}
	if cfg.Verification.TokenTTL == 0 {
		cfg.Verification.TokenTTL = 24 * time.Hour
	}
	if cfg.Scheduler.ReleaseReservationsCron == "" {
		cfg.Scheduler.ReleaseReservationsCron = "@every 1m"
	}
	if cfg.Scheduler.ExpireSessionsCron == "" {
		cfg.Scheduler.ExpireSessionsCron = "@every 5m"
	}
	if cfg.Scheduler.PruneLogsCron == "" {
		cfg.Scheduler.PruneLogsCron = "0 3 * * *"
	}
	if cfg.Scheduler.LogRetention == 0 {
		cfg.Scheduler.LogRetention = 30 * 24 * time.Hour
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "kct-storefront"
	}
	if cfg.Telemetry.MetricsInterval <= 0 {
		cfg.Telemetry.MetricsInterval = time.Minute
	}
	if cfg.Telemetry.SlowQuery <= 0 {
		cfg.Telemetry.SlowQuery = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns cannot be negative")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxOpenConns > 0 && c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Checkout.MaxCartTotal < 0 {
		return fmt.Errorf("checkout.max_cart_total cannot be negative")
	}

	// Production-specific validations
	if c.IsProduction() {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Stripe.SecretKey == "" {
			return fmt.Errorf("stripe.secret_key is required in production")
		}
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("stripe.webhook_secret is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingServer == "" {
		return fmt.Errorf("telemetry.profiling_server is required when profiling is enabled")
	}

	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// IsProduction reports whether app.env is production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
