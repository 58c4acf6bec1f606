package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldJobType is the standardized structured logging key for job types.
	FieldJobType = "job_type"
	// FieldWorkerID is the standardized structured logging key for worker identifiers.
	FieldWorkerID = "worker_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldEventType classifies a log line for filtering (stage_start, job_failed, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries a short next step for operators reading WARN/ERROR lines.
	FieldErrorHint = "error_hint"
)

type contextKey int

const (
	jobKey contextKey = iota
	workerKey
	stageKey
)

type jobFields struct {
	id      int64
	jobType string
}

// WithJob tags the context with the job being processed.
func WithJob(ctx context.Context, id int64, jobType string) context.Context {
	return context.WithValue(ctx, jobKey, jobFields{id: id, jobType: jobType})
}

// WithWorker tags the context with the owning worker id.
func WithWorker(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, workerKey, workerID)
}

// WithStage tags the context with the pipeline stage currently running.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage stored by WithStage.
func StageFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	stage, ok := ctx.Value(stageKey).(string)
	return stage, ok && stage != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if job, ok := ctx.Value(jobKey).(jobFields); ok {
		fields = append(fields, slog.Int64(FieldJobID, job.id))
		if job.jobType != "" {
			fields = append(fields, slog.String(FieldJobType, job.jobType))
		}
	}
	if worker, ok := ctx.Value(workerKey).(string); ok && worker != "" {
		fields = append(fields, slog.String(FieldWorkerID, worker))
	}
	if stage, ok := StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
