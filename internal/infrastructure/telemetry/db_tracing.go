package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey string

const queryStartKey contextKey = "otel_query_start"

// DBTracing registers otelgorm spans plus slow query marking on a gorm DB.
type DBTracing struct {
	slowQuery time.Duration
	logger    *zap.Logger
}

// NewDBTracing creates a DBTracing; slowQuery ≤ 0 disables slow query marking
func NewDBTracing(slowQuery time.Duration, logger *zap.Logger) *DBTracing {
	return &DBTracing{slowQuery: slowQuery, logger: logger}
}

// Register installs the otelgorm plugin and timing callbacks on db.
// Query variables are never recorded on spans.
func (t *DBTracing) Register(db *gorm.DB) error {
	if err := db.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName("postgresql"),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return err
	}

	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("storefront:start_create", t.before); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("storefront:start_query", t.before); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("storefront:start_update", t.before); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("storefront:start_delete", t.before); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("storefront:start_row", t.before); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("storefront:start_raw", t.before); err != nil {
		return err
	}

	if err := cb.Create().After("gorm:create").Register("storefront:finish_create", t.after); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("storefront:finish_query", t.after); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("storefront:finish_update", t.after); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("storefront:finish_delete", t.after); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("storefront:finish_row", t.after); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("storefront:finish_raw", t.after); err != nil {
		return err
	}

	t.logger.Info("Database tracing enabled", zap.Duration("slow_query_threshold", t.slowQuery))
	return nil
}

func (t *DBTracing) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey, time.Now())
	}
}

func (t *DBTracing) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) && span.IsRecording() {
		span.SetStatus(codes.Error, db.Error.Error())
	}

	start, ok := ctx.Value(queryStartKey).(time.Time)
	if !ok || t.slowQuery <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > t.slowQuery {
		if span.IsRecording() {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
		t.logger.Warn("slow query",
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", db.Statement.RowsAffected),
		)
	}
}
