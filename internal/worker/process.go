package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"transkribator/internal/jobs"
	"transkribator/internal/logging"
	"transkribator/internal/queue"
)

// panicError carries a recovered handler panic and the goroutine stack.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.value, e.stack)
}

// process runs one acquired job. It reports true when the handler stopped
// because of a shutdown request, leaving the job held for release.
func (w *Worker) process(ctx context.Context, job *queue.Job) (interrupted bool) {
	w.mu.Lock()
	w.current = job
	w.state = StateProcessing
	w.mu.Unlock()

	logger := w.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, job.JobType),
	)
	logger.Info("processing job",
		logging.Int64("user_id", job.UserID),
		logging.Int("attempts", job.Attempts),
		logging.String(logging.FieldEventType, "job_started"),
	)

	// Store writes and the handler outlive a cancelled run context; the
	// handler learns about shutdown through jobs.ShutdownRequested.
	jobCtx := context.WithoutCancel(ctx)
	defer func() {
		if interrupted {
			return
		}
		w.mu.Lock()
		w.current = nil
		w.mu.Unlock()
	}()

	started := time.Now()
	err := w.execute(ctx, jobCtx, job)
	duration := time.Since(started)

	if errors.Is(err, jobs.ErrInterrupted) {
		return true
	}
	if err != nil {
		w.recordFailure(duration)
		w.handleFailure(jobCtx, logger, job, err)
		return false
	}

	if w.cfg.DryRun {
		logger.Info("dry run enabled; job left in progress",
			logging.Duration("duration", duration),
		)
		w.recordSuccess(duration)
		return false
	}
	if err := w.store.Complete(jobCtx, job.ID); err != nil {
		w.recordFailure(duration)
		logging.ErrorWithContext(logger, "failed to complete job", "job_complete_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the job will be reclaimed after the lock timeout"),
		)
		return false
	}
	w.recordSuccess(duration)
	w.recordOutcome(jobCtx, logger, job, queue.StatusCompleted, "")
	logger.Info("job processed",
		logging.Duration("duration", duration),
		logging.String(logging.FieldEventType, "job_completed"),
	)
	return false
}

func (w *Worker) execute(ctx, jobCtx context.Context, job *queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()

	if err := w.store.MarkProgress(jobCtx, job.ID, 0); err != nil {
		return fmt.Errorf("mark progress: %w", err)
	}
	if w.cfg.DryRun {
		w.logger.Info("dry run: skipping dispatch", logging.Int64(logging.FieldJobID, job.ID))
		return nil
	}

	handlerCtx := jobs.WithShutdown(jobCtx, ctx.Done())
	handlerCtx = logging.WithJob(handlerCtx, job.ID, job.JobType)
	handlerCtx = logging.WithWorker(handlerCtx, w.cfg.WorkerID)
	return w.registry.Dispatch(handlerCtx, job)
}

func (w *Worker) handleFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, err error) {
	var message string
	var unknown *jobs.UnknownJobTypeError
	if errors.As(err, &unknown) {
		message = unknown.Error()
		logger.Error("job failed: unknown type",
			logging.String(logging.FieldEventType, "job_unknown_type"),
			logging.String(logging.FieldErrorHint, "register a handler or restrict --job-type"),
		)
	} else {
		message = failureText(err)
		logger.Error("job failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_failed"),
		)
	}
	message = queue.TruncateError(message)

	if failErr := w.store.Fail(ctx, job.ID, message); failErr != nil {
		logger.Error("failed to mark job failed",
			logging.Error(failErr),
			logging.String(logging.FieldEventType, "job_fail_write_failed"),
		)
		return
	}
	w.recordOutcome(ctx, w.logger, job, queue.StatusFailed, message)
	if notifyErr := w.notifier.NotifyJobFailed(ctx, job, message); notifyErr != nil {
		w.logger.Warn("job failure notification failed", logging.Error(notifyErr))
	}
}

// failureText renders err followed by the type and message of every wrapped
// error beneath it. Handler errors carry no stack, so the wrap chain is what
// locates the failing call site. Panics already carry their stack.
func failureText(err error) string {
	var panicErr *panicError
	if errors.As(err, &panicErr) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(err.Error())
	levels := 0
	var walk func(e error, depth int)
	walk = func(e error, depth int) {
		var children []error
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			children = u.Unwrap()
		case interface{ Unwrap() error }:
			if next := u.Unwrap(); next != nil {
				children = []error{next}
			}
		}
		for _, child := range children {
			if levels == 0 {
				b.WriteString("\n\nerror chain:\n")
				fmt.Fprintf(&b, "  %T: %s\n", err, err.Error())
			}
			levels++
			fmt.Fprintf(&b, "%s%T: %s\n", strings.Repeat("  ", depth+1), child, child.Error())
			walk(child, depth+1)
		}
	}
	walk(err, 1)
	return strings.TrimRight(b.String(), "\n")
}

func (w *Worker) recordOutcome(ctx context.Context, logger *slog.Logger, job *queue.Job, status queue.Status, message string) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.RecordOutcome(ctx, job, status, message); err != nil {
		logger.Warn("failed to mirror job outcome",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
	}
}

func (w *Worker) recordSuccess(d time.Duration) {
	w.mu.Lock()
	w.processed++
	w.totalTime += d
	w.mu.Unlock()
}

func (w *Worker) recordFailure(d time.Duration) {
	w.mu.Lock()
	w.failed++
	w.totalTime += d
	w.mu.Unlock()
}
