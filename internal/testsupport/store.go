package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"transkribator/internal/config"
	"transkribator/internal/queue"
)

// MustOpenStore opens a SQLite-backed store for tests and registers cleanup.
// A non-nil clock replaces the wall clock used for heartbeats.
func MustOpenStore(t testing.TB, cfg *config.Config, clock *Clock) *queue.SQLiteStore {
	t.Helper()

	opts := queue.Options{URL: cfg.Store.URL, LockTimeout: cfg.LockTimeout()}
	if clock != nil {
		opts.Now = clock.Now
	}
	store, err := queue.OpenSQLite(context.Background(), opts)
	if err != nil {
		t.Fatalf("queue.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustEnqueue inserts a job and fails the test on error.
func MustEnqueue(t testing.TB, store queue.Store, jobType string, payload any) *queue.Job {
	t.Helper()

	job, err := store.Enqueue(context.Background(), queue.EnqueueParams{UserID: 1, JobType: jobType, Payload: payload})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}

// MustGet fetches a job and fails the test on error.
func MustGet(t testing.TB, store queue.Store, id int64) *queue.Job {
	t.Helper()

	job, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("store.Get(%d): %v", id, err)
	}
	return job
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock starting at start (or a fixed instant when zero).
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
