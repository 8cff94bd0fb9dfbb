package scheduler

import "errors"

var (
	// ErrJobNotFound is returned when no task is registered under a name
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyRunning is returned when a manual run overlaps a running one
	ErrJobAlreadyRunning = errors.New("job already running")

	// ErrDuplicateJob is returned when two tasks share a name
	ErrDuplicateJob = errors.New("job already registered")

	// ErrInvalidSchedule wraps cron expression parse failures
	ErrInvalidSchedule = errors.New("invalid cron schedule")
)
