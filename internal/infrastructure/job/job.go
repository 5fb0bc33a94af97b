// Package job runs background email delivery on asynq.
package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
	"github.com/kctmenswear/storefront/internal/infrastructure/logger"
)

// Enqueuer queues email tasks
type Enqueuer interface {
	EnqueueVerificationEmail(ctx context.Context, p VerificationEmailPayload) error
	EnqueueOrderConfirmation(ctx context.Context, p OrderConfirmationPayload) error
}

// JobService holds the asynq client (enqueue) and server (workers)
type JobService struct {
	client   *asynq.Client
	server   *asynq.Server
	handlers *Handlers
	maxRetry int
	logger   *zap.Logger
}

var _ Enqueuer = (*JobService)(nil)

// NewJobService creates a JobService on an existing Redis connection
func NewJobService(rdb *redis.Client, cfg config.QueueConfig, handlers *Handlers, zl *zap.Logger) *JobService {
	if zl == nil {
		zl = zap.NewNop()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = DefaultMaxRetry
	}

	server := asynq.NewServerFromRedisClient(rdb, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
		},
		Logger: logger.NewAsynqLogger(zl),
	})

	return &JobService{
		client:   asynq.NewClientFromRedisClient(rdb),
		server:   server,
		handlers: handlers,
		maxRetry: maxRetry,
		logger:   zl.Named("job"),
	}
}

// EnqueueVerificationEmail queues a verification email
func (j *JobService) EnqueueVerificationEmail(ctx context.Context, p VerificationEmailPayload) error {
	task, err := NewVerificationEmailTask(p, j.maxRetry)
	if err != nil {
		return err
	}
	return j.enqueue(ctx, task)
}

// EnqueueOrderConfirmation queues an order confirmation email
func (j *JobService) EnqueueOrderConfirmation(ctx context.Context, p OrderConfirmationPayload) error {
	task, err := NewOrderConfirmationTask(p, j.maxRetry)
	if err != nil {
		return err
	}
	err = j.enqueue(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		j.logger.Info("Order confirmation already queued",
			zap.String("order_number", p.Order.OrderNumber))
		return nil
	}
	return err
}

func (j *JobService) enqueue(ctx context.Context, task *asynq.Task) error {
	info, err := j.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	j.logger.Debug("Task enqueued",
		zap.String("type", task.Type()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue))
	return nil
}

// Start registers handlers and starts the workers without blocking
func (j *JobService) Start() error {
	mux := asynq.NewServeMux()
	j.handlers.Register(mux)

	j.logger.Info("Starting background job server")
	return j.server.Start(mux)
}

// Stop waits for running tasks and closes the client
func (j *JobService) Stop() {
	j.logger.Info("Stopping background job server")
	j.server.Shutdown()
	if err := j.client.Close(); err != nil {
		j.logger.Warn("Failed to close queue client", zap.Error(err))
	}
}

// InlineQueue runs email tasks synchronously on the caller's goroutine.
// It is used when Redis is disabled.
type InlineQueue struct {
	handlers *Handlers
}

var _ Enqueuer = (*InlineQueue)(nil)

// NewInlineQueue creates an inline queue
func NewInlineQueue(handlers *Handlers) *InlineQueue {
	return &InlineQueue{handlers: handlers}
}

// EnqueueVerificationEmail sends the verification email immediately
func (q *InlineQueue) EnqueueVerificationEmail(ctx context.Context, p VerificationEmailPayload) error {
	task, err := NewVerificationEmailTask(p, 0)
	if err != nil {
		return err
	}
	return q.handlers.HandleVerificationEmail(ctx, task)
}

// EnqueueOrderConfirmation sends the order confirmation immediately
func (q *InlineQueue) EnqueueOrderConfirmation(ctx context.Context, p OrderConfirmationPayload) error {
	task, err := NewOrderConfirmationTask(p, 0)
	if err != nil {
		return err
	}
	return q.handlers.HandleOrderConfirmation(ctx, task)
}
