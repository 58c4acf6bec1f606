package worker

import (
	"context"
	"log/slog"
	"time"

	"transkribator/internal/config"
	"transkribator/internal/notifications"
	"transkribator/internal/queue"
)

const (
	// MinSideTaskInterval is the lower bound for the side task timer.
	MinSideTaskInterval = 5 * time.Minute

	defaultReleaseTimeout = 10 * time.Second
	minIdleLogInterval    = 30 * time.Second
)

// SideTask runs periodically between polls. Errors are logged and never stop the loop.
type SideTask func(ctx context.Context) error

// Config controls a single worker run.
type Config struct {
	WorkerID     string
	JobTypes     []string
	PollInterval time.Duration
	BackoffMin   time.Duration
	BackoffMax   time.Duration
	RunOnce      bool
	MaxJobs      int
	DryRun       bool

	SideTask         SideTask
	SideTaskInterval time.Duration

	// ReleaseTimeout bounds the release of a held job on exit.
	ReleaseTimeout time.Duration
}

// ConfigFromSettings maps application configuration onto a worker Config.
func ConfigFromSettings(cfg *config.Config) Config {
	return Config{
		WorkerID:     cfg.Worker.ID,
		JobTypes:     append([]string(nil), cfg.Worker.JobTypes...),
		PollInterval: cfg.PollInterval(),
		BackoffMin:   cfg.BackoffMin(),
		BackoffMax:   cfg.BackoffMax(),
		MaxJobs:      cfg.Worker.MaxJobs,
	}
}

func (c Config) sideTaskInterval() time.Duration {
	if c.SideTaskInterval < MinSideTaskInterval {
		return MinSideTaskInterval
	}
	return c.SideTaskInterval
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return time.Second
	}
	return c.PollInterval
}

func (c Config) releaseTimeout() time.Duration {
	if c.ReleaseTimeout <= 0 {
		return defaultReleaseTimeout
	}
	return c.ReleaseTimeout
}

// OutcomeRecorder mirrors terminal job states somewhere outside the store.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, job *queue.Job, status queue.Status, errMessage string) error
}

// Option configures optional Worker behavior.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithNotifier sends failure and summary alerts through the given service.
func WithNotifier(service notifications.Service) Option {
	return func(w *Worker) {
		if service != nil {
			w.notifier = service
		}
	}
}

// WithOutcomeRecorder mirrors completed and failed jobs.
func WithOutcomeRecorder(recorder OutcomeRecorder) Option {
	return func(w *Worker) {
		w.recorder = recorder
	}
}

// WithLockFile guards the run with an exclusive file lock.
func WithLockFile(path string) Option {
	return func(w *Worker) {
		w.lockPath = path
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}
