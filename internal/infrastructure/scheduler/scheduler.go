package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/subledger/backend/internal/domain/shared"
)

// JobStatus represents the outcome of a job run
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	// JobStatusPartial means the batch finished but some customers failed
	JobStatusPartial JobStatus = "PARTIAL"
	JobStatusFailed  JobStatus = "FAILED"
	// JobStatusSkipped means another instance held the job lock
	JobStatusSkipped JobStatus = "SKIPPED"
)

// Trigger records what started a run
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Task is a periodic batch job. Implementations must stop before the next
// unit of work once ctx is cancelled.
type Task interface {
	Name() string
	Execute(ctx context.Context) (*shared.BatchReport, error)
}

// TaskFunc adapts a function to Task
type TaskFunc struct {
	JobName string
	Fn      func(ctx context.Context) (*shared.BatchReport, error)
}

// Name implements Task
func (f TaskFunc) Name() string { return f.JobName }

// Execute implements Task
func (f TaskFunc) Execute(ctx context.Context) (*shared.BatchReport, error) { return f.Fn(ctx) }

// JobRun is one execution of a task
type JobRun struct {
	ID          uuid.UUID           `json:"id"`
	Job         string              `json:"job"`
	Trigger     Trigger             `json:"trigger"`
	Status      JobStatus           `json:"status"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Report      *shared.BatchReport `json:"report,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func newJobRun(job string, trigger Trigger, now time.Time) *JobRun {
	return &JobRun{
		ID:        uuid.New(),
		Job:       job,
		Trigger:   trigger,
		Status:    JobStatusRunning,
		StartedAt: now,
	}
}

// Complete marks the run finished with a report
func (r *JobRun) Complete(report *shared.BatchReport, now time.Time) {
	r.Status = JobStatusSuccess
	if report != nil && report.HasFailures() {
		r.Status = JobStatusPartial
	}
	r.Report = report
	r.CompletedAt = &now
}

// Fail marks the run failed
func (r *JobRun) Fail(err error, now time.Time) {
	r.Status = JobStatusFailed
	r.Error = err.Error()
	r.CompletedAt = &now
}

// Skip marks the run skipped
func (r *JobRun) Skip(reason string, now time.Time) {
	r.Status = JobStatusSkipped
	r.Error = reason
	r.CompletedAt = &now
}

// Duration returns how long the run took, zero while running
func (r *JobRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// JobInfo describes a registered job for the operations surface
type JobInfo struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	Running  bool       `json:"running"`
	LastRun  *JobRun    `json:"last_run,omitempty"`
}
