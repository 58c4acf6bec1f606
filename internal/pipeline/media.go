package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"transkribator/internal/jobs"
	"transkribator/internal/logging"
	"transkribator/internal/progress"
	"transkribator/internal/queue"
)

// MediaJobType is the job type handled by the media pipeline.
const MediaJobType = "media_processing"

// MediaPayload describes the Telegram media a job should process.
type MediaPayload struct {
	FileID       string         `json:"file_id"`
	FileUniqueID string         `json:"file_unique_id,omitempty"`
	MessageID    *int64         `json:"message_id,omitempty"`
	ChatID       *int64         `json:"chat_id,omitempty"`
	NoteID       *int64         `json:"note_id,omitempty"`
	FileName     string         `json:"file_name,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// ErrInvalidPayload marks a payload that cannot be processed.
var ErrInvalidPayload = errors.New("invalid media payload")

// DecodeMediaPayload parses a job payload. file_id is required and may be a
// string or a number.
func DecodeMediaPayload(raw json.RawMessage) (MediaPayload, error) {
	if len(raw) == 0 {
		return MediaPayload{}, fmt.Errorf("%w: payload is empty", ErrInvalidPayload)
	}
	var wire struct {
		MediaPayload
		FileID json.RawMessage `json:"file_id"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return MediaPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	payload := wire.MediaPayload
	fileID, err := decodeFileID(wire.FileID)
	if err != nil {
		return MediaPayload{}, err
	}
	payload.FileID = fileID
	if payload.Extra == nil {
		payload.Extra = map[string]any{}
	}
	return payload, nil
}

func decodeFileID(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", fmt.Errorf("%w: payload must include file_id", ErrInvalidPayload)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("%w: file_id is empty", ErrInvalidPayload)
		}
		return text, nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		if _, err := strconv.ParseFloat(number.String(), 64); err == nil {
			return number.String(), nil
		}
	}
	return "", fmt.Errorf("%w: file_id must be a string or number", ErrInvalidPayload)
}

// Enqueuer is the part of queue.Store used by EnqueueMedia.
type Enqueuer interface {
	Enqueue(ctx context.Context, params queue.EnqueueParams) (*queue.Job, error)
}

// EnqueueMedia schedules media processing for userID.
func EnqueueMedia(ctx context.Context, store Enqueuer, userID int64, payload MediaPayload) (*queue.Job, error) {
	if strings.TrimSpace(payload.FileID) == "" {
		return nil, fmt.Errorf("%w: payload must include file_id", ErrInvalidPayload)
	}
	return store.Enqueue(ctx, queue.EnqueueParams{
		UserID:  userID,
		JobType: MediaJobType,
		Payload: payload,
		NoteID:  payload.NoteID,
	})
}

// HandlerOption configures NewMediaHandler.
type HandlerOption func(*mediaHandler)

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *mediaHandler) { h.logger = logger }
}

// WithMirror forwards progress to a status mirror.
func WithMirror(m progress.Mirror) HandlerOption {
	return func(h *mediaHandler) {
		if m != nil {
			h.notifierOpts = append(h.notifierOpts, progress.WithMirror(m))
		}
	}
}

// WithStages replaces DefaultStages.
func WithStages(factory func() []Stage) HandlerOption {
	return func(h *mediaHandler) {
		if factory != nil {
			h.stages = factory
		}
	}
}

type mediaHandler struct {
	writer       progress.Writer
	services     Services
	logger       *slog.Logger
	stages       func() []Stage
	notifierOpts []progress.Option
}

// NewMediaHandler returns the handler for MediaJobType jobs.
func NewMediaHandler(writer progress.Writer, services Services, opts ...HandlerOption) jobs.Handler {
	h := &mediaHandler{
		writer:   writer,
		services: services,
		stages:   DefaultStages,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.NewComponentLogger(h.logger, "media")
	return h.handle
}

func (h *mediaHandler) handle(ctx context.Context, job *queue.Job) error {
	ctx = logging.WithJob(ctx, job.ID, job.JobType)
	logger := logging.WithContext(ctx, h.logger)

	payload, err := DecodeMediaPayload(job.Payload)
	if err != nil {
		logging.ErrorWithContext(logger, "bad media job payload", "payload_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-enqueue the job with a valid file_id"),
		)
		return err
	}
	if err := h.services.Validate(); err != nil {
		return err
	}

	notifier := progress.New(h.writer, job, h.logger, h.notifierOpts...)
	pc := &Context{
		Job:      job,
		Payload:  payload,
		Notifier: notifier,
		Services: h.services,
		Logger:   logger,
	}

	logger.Info("media job handler invoked",
		logging.Int64("user_id", job.UserID),
		logging.String("file_id", payload.FileID),
		logging.Any("note_id", payload.NoteID),
	)

	result, err := NewEngine(h.logger).Run(ctx, pc, h.stages())
	if err != nil {
		return err
	}
	notifier.Notify(ctx, "Processing finished")
	logger.Info("media job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Any("note_id", result.NoteID),
		logging.Any("metadata", result.Metadata),
	)
	return nil
}

// RegisterBuiltins registers the media handler under MediaJobType.
func RegisterBuiltins(registry *jobs.Registry, handler jobs.Handler, force bool) error {
	return registry.Register(MediaJobType, handler, force)
}
