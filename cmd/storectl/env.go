package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/application/diagnostics"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
	"github.com/kctmenswear/storefront/internal/infrastructure/logger"
	"github.com/kctmenswear/storefront/internal/infrastructure/persistence"
	"github.com/kctmenswear/storefront/internal/infrastructure/storage"
)

const connectTimeout = 30 * time.Second

// reportedError marks an error that has already been printed
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// env holds what every command needs
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *persistence.Database
	svc    *diagnostics.Service
	closed bool
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func newLogger() (*logger.Logger, error) {
	return logger.NewAtomic(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
}

// openEnv loads config, connects to the database and builds the
// diagnostics service. withStorage also connects object storage when
// it is configured.
func openEnv(ctx context.Context, withStorage bool) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	l, err := newLogger()
	if err != nil {
		return nil, err
	}
	log := l.Logger

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	db, err := persistence.NewDatabase(ctx, &cfg.Database, cfg.App.Env,
		persistence.WithLogger(log),
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel))),
	)
	if err != nil {
		return nil, err
	}

	var store diagnostics.ObjectStorage
	if withStorage && storageConfigured(cfg.Storage) {
		s3, err := storage.NewS3ObjectStorage(cfg.Storage, storage.WithLogger(log))
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		store = s3
	}

	svc := diagnostics.NewService(
		persistence.NewSchemaInspector(db.DB),
		persistence.NewGormProductRepository(db.DB),
		store,
		log,
	)
	return &env{cfg: cfg, log: log, db: db, svc: svc}, nil
}

func storageConfigured(cfg config.StorageConfig) bool {
	return cfg.Endpoint != "" || cfg.AccessKeyID != ""
}

func (e *env) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if err := e.db.Close(); err != nil {
		e.log.Warn("Error closing database", zap.Error(err))
	}
	_ = e.log.Sync()
}
