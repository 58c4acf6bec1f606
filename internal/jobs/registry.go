package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"transkribator/internal/queue"
)

// Handler executes a single job. A nil return means success; the worker
// loop owns the resulting store transition.
type Handler func(ctx context.Context, job *queue.Job) error

// ErrHandlerExists is returned by Register when a type is already bound and
// force is false.
var ErrHandlerExists = errors.New("handler already registered")

// UnknownJobTypeError reports a job whose type has no registered handler.
type UnknownJobTypeError struct {
	JobType    string
	Registered []string
}

func (e *UnknownJobTypeError) Error() string {
	registered := "none"
	if len(e.Registered) > 0 {
		registered = strings.Join(e.Registered, ", ")
	}
	return fmt.Sprintf("unknown job type %s. Registered handlers: %s", e.JobType, registered)
}

// Registry is a concurrency-safe job type to handler map.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds handler to jobType. Existing bindings are kept unless force is set.
func (r *Registry) Register(jobType string, handler Handler, force bool) error {
	jobType = strings.TrimSpace(jobType)
	if jobType == "" {
		return errors.New("register handler: job type is required")
	}
	if handler == nil {
		return fmt.Errorf("register handler %q: nil handler", jobType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists && !force {
		return fmt.Errorf("register handler %q: %w", jobType, ErrHandlerExists)
	}
	r.handlers[jobType] = handler
	return nil
}

// Unregister removes the handler for jobType, if any.
func (r *Registry) Unregister(jobType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, jobType)
}

// Get returns the handler bound to jobType.
func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[jobType]
	return handler, ok
}

// Available lists registered job types in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for jobType := range r.handlers {
		types = append(types, jobType)
	}
	sort.Strings(types)
	return types
}

// Dispatch runs the handler registered for job.JobType.
func (r *Registry) Dispatch(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return errors.New("dispatch: nil job")
	}
	handler, ok := r.Get(job.JobType)
	if !ok {
		return &UnknownJobTypeError{JobType: job.JobType, Registered: r.Available()}
	}
	return handler(ctx, job)
}
