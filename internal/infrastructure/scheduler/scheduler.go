// Package scheduler runs periodic maintenance jobs on robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/infrastructure/logger"
)

// DefaultJobTimeout bounds a single job run
const DefaultJobTimeout = time.Minute

// JobFunc is the body of a scheduled job
type JobFunc func(ctx context.Context) error

type job struct {
	name    string
	spec    string
	fn      JobFunc
	entryID cron.EntryID
}

// Scheduler manages named cron jobs
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	mu        sync.Mutex
	jobs      map[string]*job
	order     []string
	baseCtx   context.Context
	cancel    context.CancelFunc
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(timeout time.Duration, zl *zap.Logger) *Scheduler {
	if zl == nil {
		zl = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	cronLogger := logger.NewCronLogger(zl)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  zl.Named("scheduler"),
		timeout: timeout,
		jobs:    make(map[string]*job),
		baseCtx: context.Background(),
	}
}

// Register adds a job. spec accepts standard five-field cron expressions and
// descriptors such as "@every 1m" or "@daily".
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrSchedulerRunning
	}
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	j := &job{name: name, spec: spec, fn: fn}
	id, err := s.cron.AddFunc(spec, func() { s.execute(s.context(), j) })
	if err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidSchedule, name, spec, err)
	}
	j.entryID = id
	s.jobs[name] = j
	s.order = append(s.order, name)
	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()

	s.logger.Info("Scheduler started", zap.Strings("jobs", s.Jobs()))
	return nil
}

// Stop stops scheduling new runs and waits for running jobs to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	cancel()

	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// RunNow runs a registered job immediately on the calling goroutine
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, j)
}

// Jobs returns registered job names in registration order
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Next returns the next scheduled run of a job; zero before Start
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(j.entryID).Next
}

func (s *Scheduler) execute(ctx context.Context, j *job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := j.fn(ctx)
	if err != nil {
		s.logger.Error("Job failed",
			zap.String("job", j.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	s.logger.Debug("Job completed",
		zap.String("job", j.name),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
