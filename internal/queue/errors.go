package queue

import "errors"

var (
	// ErrNotFound indicates no job exists with the requested id.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition indicates the job exists but is not in a state that
	// permits the requested transition (for example completing a queued job).
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
	// ErrUnsupportedURL indicates Open could not map the store URL to a backend.
	ErrUnsupportedURL = errors.New("unsupported store url")
)
