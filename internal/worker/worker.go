package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"transkribator/internal/jobs"
	"transkribator/internal/logging"
	"transkribator/internal/notifications"
	"transkribator/internal/queue"
)

// ErrAlreadyRunning reports that another process holds the worker lock.
var ErrAlreadyRunning = errors.New("another worker with this id is already running")

// Worker polls the store and executes acquired jobs.
type Worker struct {
	store    queue.Store
	registry *jobs.Registry
	cfg      Config
	logger   *slog.Logger
	notifier notifications.Service
	recorder OutcomeRecorder
	lockPath string
	now      func() time.Time

	mu          sync.RWMutex
	state       State
	current     *queue.Job
	processed   int
	failed      int
	totalTime   time.Duration
	startedAt   time.Time
	lastIdleLog time.Time
	nextSide    time.Time
}

// New constructs a worker. The registry is consulted on every dispatch, so
// handlers may be registered after construction.
func New(store queue.Store, registry *jobs.Registry, cfg Config, opts ...Option) *Worker {
	w := &Worker{
		store:    store,
		registry: registry,
		cfg:      cfg,
		logger:   logging.NewNop(),
		notifier: notifications.NewService(nil),
		now:      time.Now,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logging.String(logging.FieldWorkerID, cfg.WorkerID))
	return w
}

// LockPath returns the conventional lock file location for a worker id.
func LockPath(stateDir, workerID string) string {
	return filepath.Join(stateDir, fmt.Sprintf("worker-%s.lock", workerID))
}

// Run processes jobs until ctx is cancelled or a bounded-run limit is hit.
func (w *Worker) Run(ctx context.Context) (summary Summary, err error) {
	if w.store == nil || w.registry == nil {
		return Summary{}, errors.New("worker requires a store and a registry")
	}

	if w.lockPath != "" {
		unlock, err := w.acquireLock()
		if err != nil {
			return Summary{}, err
		}
		defer unlock()
	}

	w.mu.Lock()
	w.startedAt = w.now()
	w.lastIdleLog = w.startedAt
	w.state = StateIdle
	w.mu.Unlock()
	runStarted := time.Now()

	w.logger.Info("job worker started",
		logging.Any("job_types", w.cfg.JobTypes),
		logging.Bool("run_once", w.cfg.RunOnce),
		logging.Int("max_jobs", w.cfg.MaxJobs),
		logging.Bool("dry_run", w.cfg.DryRun),
		logging.String(logging.FieldEventType, "worker_started"),
	)

	defer func() {
		w.setState(StateStopping)
		w.releaseCurrent(ctx)
		summary = w.summary(time.Since(runStarted))
		w.logSummary(ctx, summary)
	}()

	w.loop(ctx)
	return summary, nil
}

func (w *Worker) loop(ctx context.Context) {
	b := newBackoff(w.cfg.BackoffMin, w.cfg.BackoffMax)
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker received shutdown request")
			return
		}

		w.maybeRunSideTask(ctx)

		w.setState(StatePolling)
		job, err := w.store.Acquire(ctx, w.cfg.WorkerID, w.cfg.JobTypes)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logging.ErrorWithContext(w.logger, "failed to acquire job", "job_acquire_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check job store connectivity"),
			)
			w.setState(StateIdle)
			sleep(ctx, w.cfg.pollInterval())
			continue
		}
		if job == nil {
			w.setState(StateIdle)
			delay := b.Current()
			if !sleep(ctx, delay) {
				continue
			}
			b.Next()
			w.logIdle(delay)
			continue
		}

		b.Reset()
		if interrupted := w.process(ctx, job); interrupted {
			w.logger.Info("job interrupted by shutdown; it will be released",
				logging.Int64(logging.FieldJobID, job.ID),
			)
			return
		}

		if w.cfg.RunOnce {
			w.logger.Info("processed single job; stopping as requested")
			return
		}
		if w.cfg.MaxJobs > 0 && w.handledCount() >= w.cfg.MaxJobs {
			w.logger.Info("max jobs reached; stopping worker",
				logging.Int("max_jobs", w.cfg.MaxJobs),
				logging.String(logging.FieldEventType, "worker_max_jobs"),
			)
			return
		}
	}
}

func (w *Worker) maybeRunSideTask(ctx context.Context) {
	if w.cfg.SideTask == nil {
		return
	}
	now := w.now()
	w.mu.RLock()
	next := w.nextSide
	w.mu.RUnlock()
	if now.Before(next) {
		return
	}

	if err := w.cfg.SideTask(ctx); err != nil && ctx.Err() == nil {
		logging.WarnWithContext(w.logger, "side task failed", "side_task_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the task will be retried on its next interval"),
		)
	}

	w.mu.Lock()
	w.nextSide = w.now().Add(w.cfg.sideTaskInterval())
	w.mu.Unlock()
}

func (w *Worker) logIdle(delay time.Duration) {
	interval := 5 * delay
	if interval < minIdleLogInterval {
		interval = minIdleLogInterval
	}
	now := w.now()
	w.mu.Lock()
	since := now.Sub(w.lastIdleLog)
	due := since >= interval
	if due {
		w.lastIdleLog = now
	}
	w.mu.Unlock()
	if due {
		w.logger.Debug("worker idle", logging.Duration("since", since))
	}
}

func (w *Worker) releaseCurrent(ctx context.Context) {
	w.mu.Lock()
	job := w.current
	w.current = nil
	w.mu.Unlock()
	if job == nil {
		return
	}

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.releaseTimeout())
	defer cancel()
	w.logger.Info("releasing in-progress job due to shutdown",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldEventType, "job_released"),
	)
	if err := w.store.Release(releaseCtx, job.ID); err != nil {
		logging.ErrorWithContext(w.logger, "failed to release job", "job_release_failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the job will be reclaimed after the lock timeout"),
		)
	}
}

func (w *Worker) summary(runtime time.Duration) Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	summary := Summary{Processed: w.processed, Failed: w.failed, Runtime: runtime}
	if total := w.processed + w.failed; total > 0 {
		summary.AverageDuration = w.totalTime / time.Duration(total)
	}
	return summary
}

func (w *Worker) logSummary(ctx context.Context, summary Summary) {
	w.logger.Info("job worker stopped",
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.Int("total", summary.Total()),
		logging.Duration("runtime", summary.Runtime),
		logging.Duration("average_duration", summary.AverageDuration),
		logging.String(logging.FieldEventType, "worker_summary"),
	)
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.releaseTimeout())
	defer cancel()
	err := w.notifier.NotifyWorkerSummary(notifyCtx, notifications.Summary{
		WorkerID:  w.cfg.WorkerID,
		Processed: summary.Processed,
		Failed:    summary.Failed,
		Runtime:   summary.Runtime,
	})
	if err != nil {
		w.logger.Warn("worker summary notification failed", logging.Error(err))
	}
}

func (w *Worker) handledCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.processed + w.failed
}

func (w *Worker) acquireLock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(w.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(w.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, w.lockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			w.logger.Warn("failed to release worker lock", logging.Error(err))
		}
	}, nil
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
