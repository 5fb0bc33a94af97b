package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGorm(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	gl, _ := newObservedGorm(gormlogger.Info)
	other, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, gormlogger.Warn, other.logLevel)
}

func TestGormLogger_MessagesRespectLevel(t *testing.T) {
	gl, recorded := newObservedGorm(gormlogger.Warn)
	ctx := context.Background()

	gl.Info(ctx, "info %d", 1)
	gl.Warn(ctx, "warn %d", 2)
	gl.Error(ctx, "error %d", 3)

	var msgs []string
	for _, e := range recorded.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"warn 2", "error 3"}, msgs)
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-7")

	t.Run("error", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn)
		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 0), errors.New("connection reset"))

		logs := recorded.FilterMessage("SQL Error").All()
		require.Len(t, logs, 1)
		assert.Equal(t, "req-7", logs[0].ContextMap()["request_id"])
	})

	t.Run("record not found ignored by default", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn)
		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("record not found logged when enabled", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn, WithRecordNotFoundLogging())
		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 1, recorded.FilterMessage("SQL Error").Len())
	})

	t.Run("slow query", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))
		gl.Trace(ctx, time.Now().Add(-time.Second), sqlFn("SELECT pg_sleep(1)", 1), nil)
		assert.Equal(t, 1, recorded.FilterMessage("Slow SQL").Len())
	})

	t.Run("normal query only at info", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn)
		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 1), nil)
		assert.Equal(t, 0, recorded.Len())

		gl, recorded = newObservedGorm(gormlogger.Info)
		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 1), nil)
		assert.Equal(t, 1, recorded.FilterMessage("SQL Query").Len())
	})

	t.Run("silent", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Silent)
		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1", 1), errors.New("x"))
		assert.Equal(t, 0, recorded.Len())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
