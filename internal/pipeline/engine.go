package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"transkribator/internal/jobs"
	"transkribator/internal/logging"
)

// StageError reports the stage that failed a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result summarizes a finished run.
type Result struct {
	NoteID   *int64
	Metadata map[string]any
}

// Engine executes stages over a Context.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an engine logging through logger.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logging.NewComponentLogger(logger, "pipeline")}
}

// Run executes stages in order. Progress is 0 before the first stage and
// follows cumulative weight afterwards; 100 is reported only once every
// stage, cleanup included, has succeeded.
func (e *Engine) Run(ctx context.Context, pc *Context, stages []Stage) (Result, error) {
	logger := logging.WithContext(ctx, e.logger)
	if len(stages) == 0 {
		logging.WarnWithContext(logger, "media pipeline invoked without stages", "pipeline_empty",
			logging.String(logging.FieldErrorHint, "check the stage list passed to the media handler"),
		)
		return e.result(pc, stages), nil
	}

	total := 0
	for _, stage := range stages {
		total += stageWeight(stage)
	}

	e.setProgress(ctx, logger, pc, 0)

	var current string
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "media pipeline stage panicked", "stage_panic",
				logging.String(logging.FieldStage, current),
				logging.Any("panic", r),
			)
			e.cleanup(ctx, logger, pc)
			panic(r)
		}
	}()

	cumulative := 0
	for i, stage := range stages {
		current = stage.Name()
		if i > 0 && interruptibleBefore(stage.Name()) && jobs.ShutdownRequested(ctx) {
			logger.Info("shutdown requested between stages; stopping pipeline",
				logging.String(logging.FieldEventType, "pipeline_interrupted"),
				logging.String("next_stage", stage.Name()),
			)
			e.cleanup(ctx, logger, pc)
			return Result{}, jobs.ErrInterrupted
		}

		stageCtx := logging.WithStage(ctx, stage.Name())
		stageLogger := logging.WithContext(stageCtx, e.logger)
		if pc.Notifier != nil {
			pc.Notifier.Notify(stageCtx, stage.Label())
		}
		if stage.Name() == StageCleanup {
			pc.cleanupDone = true
		}

		started := time.Now()
		produced, err := stage.Run(stageCtx, pc)
		if err != nil {
			logging.ErrorWithContext(stageLogger, "media pipeline stage failed", "stage_failure",
				logging.Error(err),
				logging.Duration("stage_duration", time.Since(started)),
				logging.String(logging.FieldErrorHint, "inspect the failing service for this stage"),
			)
			e.cleanup(ctx, logger, pc)
			return Result{}, &StageError{Stage: stage.Name(), Err: err}
		}
		pc.Artifacts.merge(produced)

		stageLogger.Debug("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("stage_duration", time.Since(started)),
		)

		cumulative += stageWeight(stage)
		if i < len(stages)-1 {
			e.setProgress(ctx, logger, pc, stageProgress(cumulative, total))
		}
	}

	e.cleanup(ctx, logger, pc)
	e.setProgress(ctx, logger, pc, 100)

	result := e.result(pc, stages)
	logger.Info("media pipeline finished",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Any("note_id", result.NoteID),
	)
	return result, nil
}

// interruptibleBefore reports whether a shutdown may stop the run just before
// the named stage. Once finalize has written a note the run always finishes,
// so a released job can never deliver results twice.
func interruptibleBefore(stage string) bool {
	switch stage {
	case StageDownload, StageTranscribe, StageFinalize:
		return true
	}
	return false
}

// cleanup runs the cleanup service unless it already ran in this context.
func (e *Engine) cleanup(ctx context.Context, logger *slog.Logger, pc *Context) {
	if pc.cleanupDone {
		return
	}
	pc.cleanupDone = true
	if pc.Services.Cleanup == nil {
		return
	}
	if err := pc.Services.Cleanup(ctx, pc); err != nil {
		logging.WarnWithContext(logger, "cleanup hook failed", "cleanup_failed",
			logging.Error(err),
			logging.String("workspace", pc.Artifacts.WorkspaceDir),
			logging.String(logging.FieldErrorHint, "remove the workspace manually"),
		)
	}
}

func (e *Engine) setProgress(ctx context.Context, logger *slog.Logger, pc *Context, value int) {
	if pc.Notifier == nil {
		return
	}
	if err := pc.Notifier.SetProgress(ctx, value); err != nil {
		logging.WarnWithContext(logger, "progress update failed", "progress_failed",
			logging.Int("progress", value),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the job may have been reclaimed by another worker"),
		)
	}
}

func (e *Engine) result(pc *Context, stages []Stage) Result {
	names := make([]string, 0, len(stages))
	for _, stage := range stages {
		names = append(names, stage.Name())
	}
	result := Result{
		NoteID: pc.Payload.NoteID,
		Metadata: map[string]any{
			"transcript_length": len(pc.Artifacts.Transcript),
			"file_id":           pc.Payload.FileID,
			"stages":            names,
		},
	}
	if pc.Artifacts.Note != nil && pc.Artifacts.Note.ID != 0 {
		id := pc.Artifacts.Note.ID
		result.NoteID = &id
	}
	return result
}

func stageWeight(stage Stage) int {
	if w := stage.Weight(); w > 1 {
		return w
	}
	return 1
}

// stageProgress maps cumulative weight to a percentage below 100.
func stageProgress(cumulative, total int) int {
	value := int(math.Round(float64(cumulative) / float64(total) * 100))
	if value > 99 {
		return 99
	}
	return value
}
