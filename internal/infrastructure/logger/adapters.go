package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// CronLogger adapts zap to robfig/cron's Logger interface
type CronLogger struct {
	logger *zap.Logger
}

// NewCronLogger creates a cron logger
func NewCronLogger(l *zap.Logger) CronLogger {
	return CronLogger{logger: l.Named("cron")}
}

// Info logs routine scheduler messages at debug level
func (c CronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Sugar().Debugw(msg, keysAndValues...)
}

// Error logs scheduler failures, including recovered job panics
func (c CronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

// AsynqLogger adapts zap to asynq's Logger interface
type AsynqLogger struct {
	sugar *zap.SugaredLogger
}

// NewAsynqLogger creates a queue logger
func NewAsynqLogger(l *zap.Logger) AsynqLogger {
	return AsynqLogger{sugar: l.Named("asynq").Sugar()}
}

// Debug implements asynq.Logger
func (a AsynqLogger) Debug(args ...any) { a.sugar.Debug(fmt.Sprint(args...)) }

// Info implements asynq.Logger
func (a AsynqLogger) Info(args ...any) { a.sugar.Info(fmt.Sprint(args...)) }

// Warn implements asynq.Logger
func (a AsynqLogger) Warn(args ...any) { a.sugar.Warn(fmt.Sprint(args...)) }

// Error implements asynq.Logger
func (a AsynqLogger) Error(args ...any) { a.sugar.Error(fmt.Sprint(args...)) }

// Fatal implements asynq.Logger
func (a AsynqLogger) Fatal(args ...any) { a.sugar.Fatal(fmt.Sprint(args...)) }
