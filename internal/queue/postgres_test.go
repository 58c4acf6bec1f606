package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"transkribator/internal/queue"
	"transkribator/internal/testsupport"
)

// setupPostgres spins up a Postgres container and returns its connection string.
func setupPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("transkribator_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func openPostgres(t *testing.T, url string, clock *testsupport.Clock) *queue.PostgresStore {
	t.Helper()
	opts := queue.Options{URL: url, LockTimeout: 600 * time.Second}
	if clock != nil {
		opts.Now = clock.Now
	}
	store, err := queue.OpenPostgres(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupPostgres(t)
	clock := testsupport.NewClock(time.Time{})
	store := openPostgres(t, url, clock)
	ctx := context.Background()

	noteID := int64(5)
	job, err := store.Enqueue(ctx, queue.EnqueueParams{UserID: 3, JobType: "media_processing", Payload: map[string]string{"file_id": "f1"}, NoteID: &noteID})
	require.NoError(t, err)
	assert.Equal(t, queue.StatusQueued, job.Status)
	assert.JSONEq(t, `{"file_id":"f1"}`, string(job.Payload))

	acquired, err := store.Acquire(ctx, "worker-a", []string{"media_processing"})
	require.NoError(t, err)
	require.NotNil(t, acquired)
	assert.Equal(t, job.ID, acquired.ID)
	assert.Equal(t, 1, acquired.Attempts)
	assert.Equal(t, "worker-a", acquired.LockedBy)

	require.NoError(t, store.MarkProgress(ctx, job.ID, -5))
	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ProgressValue())

	require.NoError(t, store.Fail(ctx, job.ID, "transcription failed"))
	got, err = store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, got.Status)
	assert.Equal(t, "transcription failed", got.Error)
	assert.Empty(t, got.LockedBy)

	assert.ErrorIs(t, store.Complete(ctx, job.ID), queue.ErrInvalidTransition)
	assert.ErrorIs(t, store.Release(ctx, 424242), queue.ErrNotFound)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[queue.StatusFailed])
	assert.Equal(t, 0, stats[queue.StatusQueued])
}

func TestPostgresStaleReclaim(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupPostgres(t)
	clock := testsupport.NewClock(time.Time{})
	store := openPostgres(t, url, clock)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.EnqueueParams{UserID: 1, JobType: "media_processing"})
	require.NoError(t, err)
	_, err = store.Acquire(ctx, "worker-a", nil)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	none, err := store.Acquire(ctx, "worker-b", nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	clock.Advance(time.Second)
	reclaimed, err := store.Acquire(ctx, "worker-b", nil)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, job.ID, reclaimed.ID)
	assert.Equal(t, 2, reclaimed.Attempts)
	assert.Equal(t, "worker-a", reclaimed.ReclaimedFrom)
}

func TestPostgresConcurrentAcquire(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupPostgres(t)
	store := openPostgres(t, url, nil)
	ctx := context.Background()

	const jobCount = 40
	for i := 0; i < jobCount; i++ {
		_, err := store.Enqueue(ctx, queue.EnqueueParams{UserID: 1, JobType: "media_processing"})
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[int64]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				job, err := store.Acquire(ctx, "worker", nil)
				if err != nil {
					t.Errorf("Acquire: %v", err)
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	require.Len(t, seen, jobCount)
	for id, count := range seen {
		assert.Equalf(t, 1, count, "job %d acquired %d times", id, count)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupPostgres(t)
	require.NoError(t, queue.RunMigrations(url))
	require.NoError(t, queue.RunMigrations(url))
}
