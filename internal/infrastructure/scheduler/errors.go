package scheduler

import "errors"

var (
	// ErrSchedulerRunning is returned when registering jobs on a started scheduler
	ErrSchedulerRunning = errors.New("scheduler is already running")

	// ErrJobNotFound is returned when a job is not registered
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when a job name is registered twice
	ErrDuplicateJob = errors.New("job already registered")

	// ErrInvalidSchedule is returned for cron specs that do not parse
	ErrInvalidSchedule = errors.New("invalid job schedule")
)
