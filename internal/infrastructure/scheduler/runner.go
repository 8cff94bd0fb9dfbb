package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/subledger/backend/internal/domain/shared"
	"github.com/subledger/backend/internal/infrastructure/lock"
	"github.com/subledger/backend/internal/infrastructure/logger"
	"github.com/subledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RunObserver receives the outcome of every run, typically for metrics
type RunObserver interface {
	RecordJobRun(ctx context.Context, job, status string, duration time.Duration)
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	JobTimeout  time.Duration
	HistorySize int
	Location    *time.Location
}

// DefaultRunnerConfig returns default runner configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		JobTimeout:  30 * time.Minute,
		HistorySize: 20,
		Location:    time.UTC,
	}
}

type registeredTask struct {
	task     Task
	schedule string
	entryID  cron.EntryID
	running  atomic.Bool
}

// Runner drives registered tasks on cron schedules and on demand. Overlapping
// runs of one task are skipped inside the process; when a Locker is set the
// job lock also keeps other instances out.
type Runner struct {
	config   RunnerConfig
	cron     *cron.Cron
	locker   lock.Locker
	observer RunObserver
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	tasks   map[string]*registeredTask
	history map[string][]*JobRun

	baseCtx context.Context
	cancel  context.CancelFunc
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithJobLocker guards each run with lock.JobKey(name)
func WithJobLocker(l lock.Locker) RunnerOption {
	return func(r *Runner) {
		r.locker = l
	}
}

// WithRunObserver reports run outcomes
func WithRunObserver(o RunObserver) RunnerOption {
	return func(r *Runner) {
		r.observer = o
	}
}

// NewRunner creates a runner; tasks are added with Register
func NewRunner(cfg RunnerConfig, zapLogger *zap.Logger, opts ...RunnerOption) *Runner {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultRunnerConfig().JobTimeout
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultRunnerConfig().HistorySize
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	log := zapLogger.Named("scheduler")
	cronLog := cronLogger{log: log.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		config: cfg,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		logger:  log,
		now:     time.Now,
		tasks:   make(map[string]*registeredTask),
		history: make(map[string][]*JobRun),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a task. An empty schedule registers it for manual runs only.
func (r *Runner) Register(task Task, schedule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := task.Name()
	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	rt := &registeredTask{task: task, schedule: schedule}
	if schedule != "" {
		id, err := r.cron.AddFunc(schedule, func() {
			_, _ = r.execute(r.baseCtx, rt, TriggerSchedule)
		})
		if err != nil {
			return fmt.Errorf("%w %q for %s: %v", ErrInvalidSchedule, schedule, name, err)
		}
		rt.entryID = id
	}
	r.tasks[name] = rt
	return nil
}

// Start begins firing scheduled tasks
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("scheduler started", zap.Strings("jobs", r.names()))
}

// Stop cancels running tasks and waits for them to return or for ctx to expire
func (r *Runner) Stop(ctx context.Context) error {
	r.cancel()
	done := r.cron.Stop().Done()
	select {
	case <-done:
		r.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes a task synchronously and returns its run record
func (r *Runner) RunNow(ctx context.Context, name string) (*JobRun, error) {
	r.mu.RLock()
	rt, ok := r.tasks[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return r.execute(ctx, rt, TriggerManual)
}

// History returns the most recent runs of a job, newest first
func (r *Runner) History(name string) ([]JobRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.tasks[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	runs := r.history[name]
	out := make([]JobRun, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, *runs[i])
	}
	return out, nil
}

// Jobs lists registered jobs sorted by name
func (r *Runner) Jobs() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]JobInfo, 0, len(r.tasks))
	for name, rt := range r.tasks {
		info := JobInfo{Name: name, Schedule: rt.schedule, Running: rt.running.Load()}
		if rt.entryID != 0 {
			if next := r.cron.Entry(rt.entryID).Next; !next.IsZero() {
				info.NextRun = &next
			}
		}
		if runs := r.history[name]; len(runs) > 0 {
			last := *runs[len(runs)-1]
			info.LastRun = &last
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (r *Runner) execute(ctx context.Context, rt *registeredTask, trigger Trigger) (*JobRun, error) {
	name := rt.task.Name()
	if !rt.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s", ErrJobAlreadyRunning, name)
	}
	defer rt.running.Store(false)

	ctx, cancel := context.WithTimeout(logger.WithJob(ctx, name), r.config.JobTimeout)
	defer cancel()
	log := logger.WithLogger(ctx, r.logger)

	run := newJobRun(name, trigger, r.now())
	defer r.finish(ctx, run)

	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, lock.JobKey(name), 0)
		if errors.Is(err, shared.ErrConflict) {
			log.Info("job lock held elsewhere, skipping run")
			run.Skip("job lock held by another instance", r.now())
			return run, nil
		}
		if err != nil {
			run.Fail(err, r.now())
			return run, err
		}
		defer release()
	}

	log.Info("job started", zap.String("trigger", string(trigger)))
	report, err := safeExecute(ctx, rt.task)
	if err != nil {
		run.Fail(err, r.now())
		run.Report = report
		return run, err
	}
	run.Complete(report, r.now())
	return run, nil
}

func (r *Runner) finish(ctx context.Context, run *JobRun) {
	r.mu.Lock()
	runs := append(r.history[run.Job], run)
	if len(runs) > r.config.HistorySize {
		runs = runs[len(runs)-r.config.HistorySize:]
	}
	r.history[run.Job] = runs
	r.mu.Unlock()

	fields := []zap.Field{
		zap.String("status", string(run.Status)),
		zap.Duration("duration", run.Duration()),
	}
	if run.Report != nil {
		fields = append(fields,
			zap.Int("processed", run.Report.Processed),
			zap.Int("failed", run.Report.Failed),
			zap.Int("affected", run.Report.Affected),
		)
	}
	log := logger.WithLogger(ctx, r.logger)
	if run.Status == JobStatusFailed {
		log.Error("job failed", append(fields, zap.String("error", run.Error))...)
	} else {
		log.Info("job finished", fields...)
	}

	if r.observer != nil {
		r.observer.RecordJobRun(ctx, run.Job, string(run.Status), run.Duration())
	}
}

func (r *Runner) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func safeExecute(ctx context.Context, task Task) (report *shared.BatchReport, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", task.Name(), rec)
		}
	}()
	telemetry.WithJobLabel(ctx, task.Name(), func(ctx context.Context) {
		report, err = task.Execute(ctx)
	})
	return report, err
}

// cronLogger routes cron's own messages through zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
