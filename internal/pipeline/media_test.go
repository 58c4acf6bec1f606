package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"transkribator/internal/jobs"
	"transkribator/internal/logging"
	"transkribator/internal/pipeline"
	"transkribator/internal/queue"
	"transkribator/internal/testsupport"
)

func TestDecodeMediaPayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		fileID  string
		wantErr bool
	}{
		{name: "string id", raw: `{"file_id":"abc","note_id":5,"extra":{"k":"v"}}`, fileID: "abc"},
		{name: "numeric id", raw: `{"file_id":12345}`, fileID: "12345"},
		{name: "missing id", raw: `{"note_id":5}`, wantErr: true},
		{name: "null id", raw: `{"file_id":null}`, wantErr: true},
		{name: "empty id", raw: `{"file_id":""}`, wantErr: true},
		{name: "not json", raw: `nope`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := pipeline.DecodeMediaPayload(json.RawMessage(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, pipeline.ErrInvalidPayload) {
					t.Fatalf("expected ErrInvalidPayload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeMediaPayload: %v", err)
			}
			if payload.FileID != tt.fileID {
				t.Fatalf("file id = %q, want %q", payload.FileID, tt.fileID)
			}
			if payload.Extra == nil {
				t.Fatal("extra should never be nil")
			}
		})
	}
}

func TestMediaHandlerCompletesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, nil)
	ctx := context.Background()

	noteID := int64(9)
	if _, err := pipeline.EnqueueMedia(ctx, store, 7, pipeline.MediaPayload{FileID: "abc", NoteID: &noteID}); err != nil {
		t.Fatalf("EnqueueMedia: %v", err)
	}
	job, err := store.Acquire(ctx, "w1", nil)
	if err != nil || job == nil {
		t.Fatalf("Acquire: job=%v err=%v", job, err)
	}
	if job.JobType != pipeline.MediaJobType || job.NoteID == nil || *job.NoteID != 9 {
		t.Fatalf("unexpected job %+v", job)
	}

	cleanups := 0
	services := pipeline.Services{
		Prepare:    func(context.Context, *pipeline.Context) error { return nil },
		Download:   func(context.Context, *pipeline.Context) (string, error) { return "/tmp/abc", nil },
		Transcribe: func(context.Context, *pipeline.Context, string) (string, error) { return "hello", nil },
		Finalize: func(_ context.Context, pc *pipeline.Context, text string) (*pipeline.Note, error) {
			return &pipeline.Note{ID: *pc.Payload.NoteID, Transcript: text}, nil
		},
		Deliver: func(context.Context, *pipeline.Context) error { return nil },
		Cleanup: func(context.Context, *pipeline.Context) error {
			cleanups++
			return nil
		},
	}

	registry := jobs.NewRegistry()
	handler := pipeline.NewMediaHandler(store, services, pipeline.WithLogger(logging.NewNop()))
	if err := pipeline.RegisterBuiltins(registry, handler, false); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	if err := registry.Dispatch(ctx, job); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if cleanups != 1 {
		t.Fatalf("cleanup calls = %d, want 1", cleanups)
	}

	stored := testsupport.MustGet(t, store, job.ID)
	if stored.ProgressValue() != 100 {
		t.Fatalf("progress = %d, want 100", stored.ProgressValue())
	}
	if stored.Status != queue.StatusInProgress {
		t.Fatalf("handler must not finish the job itself, status = %s", stored.Status)
	}
}

func TestMediaHandlerRejectsBadPayload(t *testing.T) {
	handler := pipeline.NewMediaHandler(nil, pipeline.Services{})
	job := &queue.Job{ID: 3, JobType: pipeline.MediaJobType, Payload: json.RawMessage(`{"note_id":1}`)}
	if err := handler(context.Background(), job); !errors.Is(err, pipeline.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestMediaHandlerRequiresServices(t *testing.T) {
	handler := pipeline.NewMediaHandler(nil, pipeline.Services{})
	job := &queue.Job{ID: 3, JobType: pipeline.MediaJobType, Payload: json.RawMessage(`{"file_id":"x"}`)}
	if err := handler(context.Background(), job); err == nil {
		t.Fatal("expected missing services error")
	}
}

func TestRegisterBuiltinsRespectsForce(t *testing.T) {
	registry := jobs.NewRegistry()
	noop := func(context.Context, *queue.Job) error { return nil }
	if err := pipeline.RegisterBuiltins(registry, noop, false); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := pipeline.RegisterBuiltins(registry, noop, false); !errors.Is(err, jobs.ErrHandlerExists) {
		t.Fatalf("expected ErrHandlerExists, got %v", err)
	}
	if err := pipeline.RegisterBuiltins(registry, noop, true); err != nil {
		t.Fatalf("forced register: %v", err)
	}
}
