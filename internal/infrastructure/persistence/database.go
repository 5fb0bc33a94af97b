package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB      *gorm.DB
	profile PoolProfile
	logger  *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Option configures Open
type Option func(*openOptions)

type openOptions struct {
	logger     *zap.Logger
	gormLogger gormlogger.Interface
	sleep      func(time.Duration)
}

// WithLogger sets the zap logger used for retries and health checks
func WithLogger(l *zap.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// WithGormLogger sets the GORM query logger
func WithGormLogger(l gormlogger.Interface) Option {
	return func(o *openOptions) { o.gormLogger = l }
}

// NewDatabase connects to PostgreSQL using the pool profile for env,
// overridden by any explicit pool settings in cfg.
func NewDatabase(ctx context.Context, cfg *config.DatabaseConfig, env string, opts ...Option) (*Database, error) {
	profile := ProfileFor(env).Override(cfg)
	dsn, err := profileDSN(cfg.DSN(), profile)
	if err != nil {
		return nil, err
	}
	return Open(ctx, postgres.Open(dsn), profile, opts...)
}

// Open opens a database through dialector, applies the profile to the pool
// and pings it, retrying per the profile.
func Open(ctx context.Context, dialector gorm.Dialector, profile PoolProfile, opts ...Option) (*Database, error) {
	o := openOptions{
		logger:     zap.NewNop(),
		gormLogger: gormlogger.Default.LogMode(gormlogger.Silent),
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 o.gormLogger,
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(profile.MaxConnections)
	sqlDB.SetMaxIdleConns(profile.PoolSize)
	sqlDB.SetConnMaxLifetime(profile.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(profile.IdleTimeout)

	d := &Database{DB: db, profile: profile, logger: o.logger, stop: make(chan struct{})}

	attempts := max(profile.RetryAttempts, 1)
	for attempt := 1; ; attempt++ {
		err = d.ping(ctx)
		if err == nil {
			break
		}
		if attempt >= attempts {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempt, err)
		}
		o.logger.Warn("Database connection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_delay", profile.RetryDelay),
			zap.Error(err),
		)
		o.sleep(profile.RetryDelay)
	}

	d.warm(ctx, profile.MinConnections)

	o.logger.Info("Database connected",
		zap.String("profile", profile.Name),
		zap.Int("max_connections", profile.MaxConnections),
		zap.Int("pool_size", profile.PoolSize),
	)
	return d, nil
}

// profileDSN adds connect and statement timeouts to a postgres URL DSN
func profileDSN(dsn string, p PoolProfile) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid database DSN: %w", err)
	}
	q := u.Query()
	if p.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(p.ConnectTimeout.Seconds())))
	}
	if p.QueryTimeout > 0 {
		q.Set("statement_timeout", strconv.FormatInt(p.QueryTimeout.Milliseconds(), 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// warm opens n connections so the pool starts with them idle
func (d *Database) warm(ctx context.Context, n int) {
	sqlDB, err := d.DB.DB()
	if err != nil || n <= 0 {
		return
	}
	conns := make([]*sql.Conn, 0, n)
	for range n {
		c, err := sqlDB.Conn(ctx)
		if err != nil {
			d.logger.Warn("Failed to open warm connection", zap.Error(err))
			break
		}
		conns = append(conns, c)
	}
	for _, c := range conns {
		_ = c.Close()
	}
}

// Profile returns the pool profile in effect
func (d *Database) Profile() PoolProfile {
	return d.profile
}

func (d *Database) ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if d.profile.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.profile.ConnectTimeout)
		defer cancel()
	}
	return sqlDB.PingContext(ctx)
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	return d.ping(ctx)
}

// StartHealthCheck pings the database every profile interval until ctx is
// cancelled or the database is closed. Failures are logged.
func (d *Database) StartHealthCheck(ctx context.Context, logger *zap.Logger) {
	interval := d.profile.HealthCheckInterval
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = d.logger
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			case <-ticker.C:
				if err := d.ping(ctx); err != nil {
					logger.Error("Database health check failed", zap.Error(err))
					continue
				}
				if stats, err := d.Stats(); err == nil {
					logger.Debug("Database health check",
						zap.Int("open", stats.OpenConnections),
						zap.Int("in_use", stats.InUse),
						zap.Int("idle", stats.Idle),
					)
				}
			}
		}
	}()
}

// Close stops the health check and closes the database connection
func (d *Database) Close() error {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()

	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	MaxIdleClosed      int64
	MaxIdleTimeClosed  int64
	MaxLifetimeClosed  int64
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.DB.WithContext(ctx).Transaction(fn)
}
