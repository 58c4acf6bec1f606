package pipeline

import (
	"log/slog"

	"transkribator/internal/progress"
	"transkribator/internal/queue"
)

// Note is the finalized note produced for a transcription.
type Note struct {
	ID         int64
	Title      string
	Transcript string
}

// Artifacts carries the values stages hand to each other.
type Artifacts struct {
	WorkspaceDir  string
	MediaPath     string
	Transcript    string
	HasTranscript bool
	Note          *Note
}

// SetTranscript records a transcript, including an empty one.
func (a *Artifacts) SetTranscript(text string) {
	a.Transcript = text
	a.HasTranscript = true
}

// merge copies every non-zero field of update into a.
func (a *Artifacts) merge(update Artifacts) {
	if update.WorkspaceDir != "" {
		a.WorkspaceDir = update.WorkspaceDir
	}
	if update.MediaPath != "" {
		a.MediaPath = update.MediaPath
	}
	if update.HasTranscript {
		a.Transcript = update.Transcript
		a.HasTranscript = true
	}
	if update.Note != nil {
		a.Note = update.Note
	}
}

// Context is the per-job state shared by all stages of one run. It is owned
// by a single goroutine and never persisted.
type Context struct {
	Job       *queue.Job
	Payload   MediaPayload
	Notifier  *progress.Notifier
	Services  Services
	Artifacts Artifacts
	Logger    *slog.Logger

	cleanupDone bool
}
