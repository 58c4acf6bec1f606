// Package local provides the default pipeline services: a per-job workspace
// on local disk plus placeholder download, transcription and delivery steps.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"transkribator/internal/logging"
	"transkribator/internal/pipeline"
	"transkribator/internal/textutil"
)

// PlaceholderTranscript is returned by the default transcriber.
const PlaceholderTranscript = "TRANSCRIPTION_PLACEHOLDER"

// Provider owns the workspace root shared by every job.
type Provider struct {
	root   string
	logger *slog.Logger
}

// New creates a provider rooted at workspaceRoot. An empty root uses the
// system temp directory.
func New(workspaceRoot string, logger *slog.Logger) *Provider {
	root := strings.TrimSpace(workspaceRoot)
	if root == "" {
		root = os.TempDir()
	}
	return &Provider{root: root, logger: logging.NewComponentLogger(logger, "services.local")}
}

// Root returns the workspace root.
func (p *Provider) Root() string { return p.root }

// Services returns the default service set.
func (p *Provider) Services() pipeline.Services {
	return pipeline.Services{
		Prepare:    p.Prepare,
		Download:   p.Download,
		Transcribe: p.Transcribe,
		Finalize:   p.Finalize,
		Deliver:    p.Deliver,
		Cleanup:    p.Cleanup,
	}
}

// Prepare creates the job workspace once.
func (p *Provider) Prepare(ctx context.Context, pc *pipeline.Context) error {
	if pc.Artifacts.WorkspaceDir != "" {
		return nil
	}
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	if err := unix.Access(p.root, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("workspace root %s not writable: %w", p.root, err)
	}
	dir, err := os.MkdirTemp(p.root, fmt.Sprintf("job-%d-", pc.Job.ID))
	if err != nil {
		return fmt.Errorf("create job workspace: %w", err)
	}
	pc.Artifacts.WorkspaceDir = dir
	logging.WithContext(ctx, p.logger).Debug("workspace prepared", logging.String("workspace", dir))
	return nil
}

// Download creates an empty placeholder file named after the file id.
func (p *Provider) Download(ctx context.Context, pc *pipeline.Context) (string, error) {
	workspace := pc.Artifacts.WorkspaceDir
	if workspace == "" {
		return "", errors.New("workspace missing; prepare stage must run first")
	}
	path := filepath.Join(workspace, safeName(pc.Payload.FileID)+".media")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create media placeholder: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	logging.WithContext(ctx, p.logger).Info("placeholder media created",
		logging.String("file_id", pc.Payload.FileID),
		logging.String("path", path),
	)
	return path, nil
}

// Transcribe returns PlaceholderTranscript.
func (p *Provider) Transcribe(ctx context.Context, _ *pipeline.Context, mediaPath string) (string, error) {
	logging.WithContext(ctx, p.logger).Info("placeholder transcription", logging.String("media_path", mediaPath))
	return PlaceholderTranscript, nil
}

// Finalize returns the note referenced by the payload, or nil when the job
// has no note.
func (p *Provider) Finalize(ctx context.Context, pc *pipeline.Context, transcript string) (*pipeline.Note, error) {
	logger := logging.WithContext(ctx, p.logger)
	if pc.Payload.NoteID == nil {
		logger.Warn("finalize stage has no note id; skipping note update",
			logging.String(logging.FieldEventType, "note_skipped"),
			logging.String(logging.FieldErrorHint, "enqueue with a note id to attach the transcript"),
		)
		return nil, nil
	}
	logger.Info("note finalized",
		logging.Int64("note_id", *pc.Payload.NoteID),
		logging.Int("transcript_length", len(transcript)),
	)
	return &pipeline.Note{ID: *pc.Payload.NoteID, Transcript: transcript}, nil
}

// Deliver only logs.
func (p *Provider) Deliver(ctx context.Context, pc *pipeline.Context) error {
	attrs := []logging.Attr{logging.Int64("user_id", pc.Job.UserID)}
	if pc.Artifacts.Note != nil {
		attrs = append(attrs, logging.Int64("note_id", pc.Artifacts.Note.ID))
	}
	logging.WithContext(ctx, p.logger).Info("results ready for delivery", logging.Args(attrs...)...)
	return nil
}

// Cleanup removes the job workspace.
func (p *Provider) Cleanup(ctx context.Context, pc *pipeline.Context) error {
	workspace := pc.Artifacts.WorkspaceDir
	if workspace == "" {
		return nil
	}
	if err := os.RemoveAll(workspace); err != nil {
		return fmt.Errorf("remove workspace %s: %w", workspace, err)
	}
	logging.WithContext(ctx, p.logger).Debug("workspace cleaned", logging.String("workspace", workspace))
	return nil
}

func safeName(fileID string) string {
	return textutil.SanitizeFileName(fileID, "media")
}
