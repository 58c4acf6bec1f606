package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"transkribator/internal/logging"
)

// DefaultLockTimeout is the heartbeat age after which an in-progress job may be reclaimed.
const DefaultLockTimeout = 600 * time.Second

// Store is the persistence contract shared by the SQLite and PostgreSQL backends.
type Store interface {
	// Enqueue inserts a queued job.
	Enqueue(ctx context.Context, params EnqueueParams) (*Job, error)
	// Acquire claims the oldest eligible job for workerID. It returns nil, nil
	// when nothing is available. An empty jobTypes slice accepts any type.
	Acquire(ctx context.Context, workerID string, jobTypes []string) (*Job, error)
	// MarkProgress records progress (clamped to 0..100) and refreshes the heartbeat.
	MarkProgress(ctx context.Context, id int64, progress int) error
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, message string) error
	// Release returns an in-progress job to the queue without touching attempts.
	Release(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Job, error)
	List(ctx context.Context, filter ListFilter) ([]*Job, error)
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Options configures a Store.
type Options struct {
	URL         string
	LockTimeout time.Duration
	Logger      *slog.Logger
	// Now overrides the clock; tests use it to age heartbeats.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultLockTimeout
	}
	o.Logger = logging.NewComponentLogger(o.Logger, "queue")
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Open connects to the backend selected by opts.URL: postgres:// and
// postgresql:// URLs use PostgreSQL, anything else is treated as a SQLite path
// (an optional sqlite:// or file: prefix is stripped).
func Open(ctx context.Context, opts Options) (Store, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedURL)
	}
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return OpenPostgres(ctx, opts)
	case strings.Contains(lower, "://") && !strings.HasPrefix(lower, "sqlite://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, redactURL(url))
	default:
		return OpenSQLite(ctx, opts)
	}
}

// TruncateError caps message at MaxErrorBytes without splitting a UTF-8 sequence.
func TruncateError(message string) string {
	if len(message) <= MaxErrorBytes {
		return message
	}
	cut := MaxErrorBytes
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

func clampProgress(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, fmt.Errorf("encode payload: invalid json")
		}
		return v, nil
	case []byte:
		return encodePayload(json.RawMessage(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return data, nil
	}
}

func validateEnqueue(params EnqueueParams) error {
	if strings.TrimSpace(params.JobType) == "" {
		return fmt.Errorf("enqueue: job type is required")
	}
	return nil
}

// redactURL drops credentials from a connection string before it is logged.
func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "***" + raw[at:]
}
