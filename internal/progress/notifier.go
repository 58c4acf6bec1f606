// Package progress persists job progress and narrates pipeline stage
// transitions for a single job.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"transkribator/internal/logging"
	"transkribator/internal/queue"
)

// Writer persists progress for a job. queue.Store satisfies it.
type Writer interface {
	MarkProgress(ctx context.Context, id int64, progress int) error
}

// Update is a progress event forwarded to a Mirror.
type Update struct {
	JobID    int64     `json:"job_id"`
	UserID   int64     `json:"user_id"`
	JobType  string    `json:"job_type"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Mirror receives every persisted update and notification, typically to
// surface them outside the database (see statuscache).
type Mirror interface {
	Publish(ctx context.Context, update Update) error
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithMirror forwards updates to m. Mirror failures never fail the job.
func WithMirror(m Mirror) Option {
	return func(n *Notifier) { n.mirror = m }
}

// Notifier tracks the last persisted progress value for one job and avoids
// redundant writes.
type Notifier struct {
	writer Writer
	job    *queue.Job
	logger *slog.Logger
	mirror Mirror

	mu   sync.Mutex
	last *int
}

// New builds a notifier for job.
func New(writer Writer, job *queue.Job, logger *slog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		writer: writer,
		job:    job,
		logger: logging.NewComponentLogger(logger, "progress"),
	}
	if job != nil && job.Progress != nil {
		v := *job.Progress
		n.last = &v
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SetProgress clamps value to 0..100 and persists it when it differs from
// the last persisted value.
func (n *Notifier) SetProgress(ctx context.Context, value int) error {
	value = clamp(value)
	n.mu.Lock()
	if n.last != nil && *n.last == value {
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	if err := n.writer.MarkProgress(ctx, n.job.ID, value); err != nil {
		return err
	}

	n.mu.Lock()
	n.last = &value
	n.mu.Unlock()

	n.publish(ctx, value, "")
	return nil
}

// Current returns the last persisted progress, or zero.
func (n *Notifier) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return 0
	}
	return *n.last
}

// Notify records a human-readable stage transition.
func (n *Notifier) Notify(ctx context.Context, message string) {
	logging.WithContext(ctx, n.logger).Info(message,
		logging.String(logging.FieldEventType, "stage_transition"),
		logging.Int64(logging.FieldJobID, n.job.ID),
		logging.Int("progress", n.Current()),
	)
	n.publish(ctx, n.Current(), message)
}

func (n *Notifier) publish(ctx context.Context, value int, message string) {
	if n.mirror == nil {
		return
	}
	update := Update{
		JobID:    n.job.ID,
		UserID:   n.job.UserID,
		JobType:  n.job.JobType,
		Progress: value,
		Message:  message,
		At:       time.Now().UTC(),
	}
	if err := n.mirror.Publish(ctx, update); err != nil {
		n.logger.Debug("progress mirror publish failed",
			logging.Int64(logging.FieldJobID, n.job.ID),
			logging.Error(err),
		)
	}
}

func clamp(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
