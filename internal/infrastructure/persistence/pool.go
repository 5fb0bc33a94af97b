package persistence

import (
	"time"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

// PoolProfile describes connection pool sizing and timeouts for one environment
type PoolProfile struct {
	Name                string
	PoolSize            int // idle connections kept open
	MinConnections      int // connections opened eagerly on startup
	MaxConnections      int
	ConnectTimeout      time.Duration
	IdleTimeout         time.Duration
	QueryTimeout        time.Duration
	RetryAttempts       int
	RetryDelay          time.Duration
	HealthCheckInterval time.Duration
	ConnMaxLifetime     time.Duration
}

// ProductionProfile is used when app.env is production
var ProductionProfile = PoolProfile{
	Name:                "production",
	PoolSize:            20,
	MinConnections:      5,
	MaxConnections:      25,
	ConnectTimeout:      5 * time.Second,
	IdleTimeout:         5 * time.Minute,
	QueryTimeout:        30 * time.Second,
	RetryAttempts:       3,
	RetryDelay:          time.Second,
	HealthCheckInterval: 60 * time.Second,
	ConnMaxLifetime:     30 * time.Minute,
}

// DevelopmentProfile is used for every other environment
var DevelopmentProfile = PoolProfile{
	Name:                "development",
	PoolSize:            5,
	MinConnections:      2,
	MaxConnections:      10,
	ConnectTimeout:      10 * time.Second,
	IdleTimeout:         10 * time.Minute,
	QueryTimeout:        60 * time.Second,
	RetryAttempts:       5,
	RetryDelay:          2 * time.Second,
	HealthCheckInterval: 120 * time.Second,
	ConnMaxLifetime:     time.Hour,
}

// ProfileFor returns the pool profile for an application environment
func ProfileFor(env string) PoolProfile {
	if env == "production" {
		return ProductionProfile
	}
	return DevelopmentProfile
}

// Override applies explicit database settings on top of the profile.
// Zero values in cfg leave the profile untouched.
func (p PoolProfile) Override(cfg *config.DatabaseConfig) PoolProfile {
	if cfg == nil {
		return p
	}
	if cfg.MaxOpenConns > 0 {
		p.MaxConnections = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		p.PoolSize = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		p.ConnMaxLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Minute
	}
	if cfg.ConnMaxIdleTime > 0 {
		p.IdleTimeout = time.Duration(cfg.ConnMaxIdleTime) * time.Minute
	}
	if p.PoolSize > p.MaxConnections {
		p.PoolSize = p.MaxConnections
	}
	if p.MinConnections > p.PoolSize {
		p.MinConnections = p.PoolSize
	}
	return p
}
