package jobs

import (
	"context"
	"errors"
)

// ErrInterrupted is returned by handlers that stopped between steps because
// shutdown was requested. The worker releases such jobs back to the queue.
var ErrInterrupted = errors.New("job interrupted by shutdown")

type shutdownKey struct{}

// WithShutdown attaches a channel that closes when the worker wants to stop.
// Handlers run on a context detached from cancellation, so this channel is
// their only stop signal.
func WithShutdown(ctx context.Context, done <-chan struct{}) context.Context {
	return context.WithValue(ctx, shutdownKey{}, done)
}

// ShutdownRequested reports whether the attached shutdown channel is closed.
func ShutdownRequested(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	done, ok := ctx.Value(shutdownKey{}).(<-chan struct{})
	if !ok || done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}
