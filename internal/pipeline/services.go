package pipeline

import (
	"context"
	"fmt"
)

type (
	// PrepareFunc sets up the job workspace and records it in pc.Artifacts.
	PrepareFunc func(ctx context.Context, pc *Context) error
	// DownloadFunc fetches the payload's media and returns its local path.
	DownloadFunc func(ctx context.Context, pc *Context) (string, error)
	// TranscribeFunc turns the media at mediaPath into text.
	TranscribeFunc func(ctx context.Context, pc *Context, mediaPath string) (string, error)
	// FinalizeFunc persists the transcript; a nil note is allowed.
	FinalizeFunc func(ctx context.Context, pc *Context, transcript string) (*Note, error)
	// DeliverFunc sends the results back to the user.
	DeliverFunc func(ctx context.Context, pc *Context) error
	// CleanupFunc removes the workspace. The engine calls it at most once per run.
	CleanupFunc func(ctx context.Context, pc *Context) error
)

// Services is the set of I/O functions the stages delegate to.
type Services struct {
	Prepare    PrepareFunc
	Download   DownloadFunc
	Transcribe TranscribeFunc
	Finalize   FinalizeFunc
	Deliver    DeliverFunc
	Cleanup    CleanupFunc
}

// Validate reports the first missing service.
func (s Services) Validate() error {
	missing := ""
	switch {
	case s.Prepare == nil:
		missing = "prepare"
	case s.Download == nil:
		missing = "download"
	case s.Transcribe == nil:
		missing = "transcribe"
	case s.Finalize == nil:
		missing = "finalize"
	case s.Deliver == nil:
		missing = "deliver"
	case s.Cleanup == nil:
		missing = "cleanup"
	}
	if missing != "" {
		return fmt.Errorf("pipeline services: %s service is not configured", missing)
	}
	return nil
}

// Override returns a copy of s with every non-nil function of other applied.
func (s Services) Override(other Services) Services {
	if other.Prepare != nil {
		s.Prepare = other.Prepare
	}
	if other.Download != nil {
		s.Download = other.Download
	}
	if other.Transcribe != nil {
		s.Transcribe = other.Transcribe
	}
	if other.Finalize != nil {
		s.Finalize = other.Finalize
	}
	if other.Deliver != nil {
		s.Deliver = other.Deliver
	}
	if other.Cleanup != nil {
		s.Cleanup = other.Cleanup
	}
	return s
}
