package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"transkribator/internal/logging"
)

// PostgresStore implements Store on PostgreSQL using pgx/v5.
type PostgresStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time

	// lockingUnsupported flips once the server rejects FOR UPDATE SKIP LOCKED.
	lockingUnsupported atomic.Bool
}

const (
	pgFeatureNotSupported = "0A000"
	pgSyntaxError         = "42601"
	casAcquireAttempts    = 3
)

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenPostgres applies migrations and connects to the database at opts.URL.
func OpenPostgres(ctx context.Context, opts Options) (*PostgresStore, error) {
	ctx = ensureContext(ctx)
	opts = opts.withDefaults()

	if err := RunMigrations(opts.URL); err != nil {
		return nil, err
	}
	pool, err := Connect(ctx, opts.URL)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(pool, opts), nil
}

// NewPostgresStore wraps an existing pool. The schema must already be migrated.
func NewPostgresStore(pool *pgxpool.Pool, opts Options) *PostgresStore {
	opts = opts.withDefaults()
	return &PostgresStore{
		pool:        pool,
		lockTimeout: opts.LockTimeout,
		logger:      opts.Logger.With(logging.String("backend", "postgres")),
		now:         opts.Now,
	}
}

// Pool exposes the connection pool for components sharing the database.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ensureContext(ctx))
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Enqueue inserts a queued job.
func (s *PostgresStore) Enqueue(ctx context.Context, params EnqueueParams) (*Job, error) {
	ctx = ensureContext(ctx)
	if err := validateEnqueue(params); err != nil {
		return nil, err
	}
	payload, err := encodePayload(params.Payload)
	if err != nil {
		return nil, err
	}

	job, err := scanPgJob(s.pool.QueryRow(ctx,
		`INSERT INTO processing_jobs (user_id, note_id, job_type, status, payload, attempts, created_at)
		 VALUES ($1, $2, $3, 'queued', $4::jsonb, 0, $5)
		 RETURNING `+jobColumns,
		params.UserID, params.NoteID, strings.TrimSpace(params.JobType), string(payload), s.now().UTC(),
	))
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	s.logger.Debug("job enqueued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, job.JobType),
	)
	return job, nil
}

// pgCandidateFilter selects queued jobs and in-progress jobs whose heartbeat
// is older than the cutoff, optionally restricted to a set of job types.
func pgCandidateFilter(cutoffArg, typesArg int) string {
	return fmt.Sprintf(`(status = 'queued'
		       OR (status = 'in_progress' AND (locked_at IS NULL OR locked_at < $%[1]d)))
		  AND (cardinality($%[2]d::text[]) = 0 OR job_type = ANY($%[2]d::text[]))`, cutoffArg, typesArg)
}

const pgClaimSet = `SET status = 'in_progress',
		    reclaimed_from = CASE WHEN status = 'in_progress' THEN locked_by END,
		    locked_by = $1,
		    locked_at = $2,
		    attempts = attempts + 1,
		    started_at = COALESCE(started_at, $2)`

// Acquire claims the oldest queued or stale in-progress job. Row locks with
// SKIP LOCKED guarantee a single winner; when the server rejects them the
// store falls back to a read followed by a compare-and-set update.
func (s *PostgresStore) Acquire(ctx context.Context, workerID string, jobTypes []string) (*Job, error) {
	ctx = ensureContext(ctx)
	if jobTypes == nil {
		jobTypes = []string{}
	}
	now := s.now().UTC()
	cutoff := now.Add(-s.lockTimeout)

	if !s.lockingUnsupported.Load() {
		job, err := s.acquireLocked(ctx, workerID, jobTypes, now, cutoff)
		if err == nil {
			if job != nil {
				logAcquired(s.logger, job, workerID)
			}
			return job, nil
		}
		if !isLockingUnsupported(err) {
			return nil, fmt.Errorf("acquire job: %w", err)
		}
		if s.lockingUnsupported.CompareAndSwap(false, true) {
			logging.WarnWithContext(s.logger, "row locking unsupported; falling back to compare-and-set acquire", "acquire_degraded",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "concurrent workers may contend more; upgrade the database to support SKIP LOCKED"),
			)
		}
	}

	job, err := s.acquireCAS(ctx, workerID, jobTypes, now, cutoff)
	if err != nil {
		return nil, fmt.Errorf("acquire job: %w", err)
	}
	if job != nil {
		logAcquired(s.logger, job, workerID)
	}
	return job, nil
}

func (s *PostgresStore) acquireLocked(ctx context.Context, workerID string, jobTypes []string, now, cutoff time.Time) (*Job, error) {
	job, err := scanPgJob(s.pool.QueryRow(ctx, `
		UPDATE processing_jobs
		`+pgClaimSet+`
		WHERE id = (
		    SELECT id FROM processing_jobs
		    WHERE `+pgCandidateFilter(3, 4)+`
		    ORDER BY created_at ASC, id ASC
		    FOR UPDATE SKIP LOCKED
		    LIMIT 1
		)
		RETURNING `+jobColumns,
		workerID, now, cutoff, jobTypes,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (s *PostgresStore) acquireCAS(ctx context.Context, workerID string, jobTypes []string, now, cutoff time.Time) (*Job, error) {
	for attempt := 0; attempt < casAcquireAttempts; attempt++ {
		var (
			id       int64
			status   string
			lockedAt *time.Time
		)
		err := s.pool.QueryRow(ctx, `
			SELECT id, status, locked_at FROM processing_jobs
			WHERE `+pgCandidateFilter(1, 2)+`
			ORDER BY created_at ASC, id ASC
			LIMIT 1`,
			cutoff, jobTypes,
		).Scan(&id, &status, &lockedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		job, err := scanPgJob(s.pool.QueryRow(ctx, `
			UPDATE processing_jobs
			`+pgClaimSet+`
			WHERE id = $3 AND status = $4 AND locked_at IS NOT DISTINCT FROM $5
			RETURNING `+jobColumns,
			workerID, now, id, status, lockedAt,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			// Another worker claimed the row between read and update.
			continue
		}
		if err != nil {
			return nil, err
		}
		return job, nil
	}
	return nil, nil
}

func isLockingUnsupported(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgFeatureNotSupported || pgErr.Code == pgSyntaxError
}

// MarkProgress records progress and refreshes the heartbeat.
func (s *PostgresStore) MarkProgress(ctx context.Context, id int64, progress int) error {
	return s.transition(ctx, "mark progress", id,
		`UPDATE processing_jobs SET progress = $2, locked_at = $3 WHERE id = $1 AND status = 'in_progress'`,
		id, clampProgress(progress), s.now().UTC())
}

// Complete marks an in-progress job completed.
func (s *PostgresStore) Complete(ctx context.Context, id int64) error {
	return s.transition(ctx, "complete job", id,
		`UPDATE processing_jobs
		 SET status = 'completed', finished_at = $2, locked_by = NULL, locked_at = NULL, error = NULL
		 WHERE id = $1 AND status = 'in_progress'`,
		id, s.now().UTC())
}

// Fail marks an in-progress job failed, storing a truncated message.
func (s *PostgresStore) Fail(ctx context.Context, id int64, message string) error {
	return s.transition(ctx, "fail job", id,
		`UPDATE processing_jobs
		 SET status = 'failed', finished_at = $2, locked_by = NULL, locked_at = NULL, error = $3
		 WHERE id = $1 AND status = 'in_progress'`,
		id, s.now().UTC(), TruncateError(message))
}

// Release returns an in-progress job to the queue.
func (s *PostgresStore) Release(ctx context.Context, id int64) error {
	return s.transition(ctx, "release job", id,
		`UPDATE processing_jobs
		 SET status = 'queued', locked_by = NULL, locked_at = NULL
		 WHERE id = $1 AND status = 'in_progress'`,
		id)
}

func (s *PostgresStore) transition(ctx context.Context, op string, id int64, query string, args ...any) error {
	ctx = ensureContext(ctx)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	return fmt.Errorf("%s %d: %w", op, id, ErrInvalidTransition)
}

// Get fetches a job by id.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*Job, error) {
	job, err := scanPgJob(s.pool.QueryRow(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM processing_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// List returns jobs matching filter, oldest first.
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	jobTypes := filter.JobTypes
	if jobTypes == nil {
		jobTypes = []string{}
	}
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}

	rows, err := s.pool.Query(ensureContext(ctx), `
		SELECT `+jobColumns+` FROM processing_jobs
		WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
		  AND (cardinality($2::text[]) = 0 OR job_type = ANY($2::text[]))
		ORDER BY created_at ASC, id ASC
		LIMIT $3`,
		statuses, jobTypes, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanPgJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns job counts per status, including zero counts.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.pool.Query(ensureContext(ctx), `SELECT status, COUNT(*) FROM processing_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := newStats()
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job stats: %w", err)
		}
		stats[Status(status)] = int(count)
	}
	return stats, rows.Err()
}

func scanPgJob(row pgx.Row) (*Job, error) {
	var (
		job           Job
		status        string
		payload       []byte
		progress      *int32
		lockedBy      *string
		reclaimedFrom *string
		errorMessage  *string
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.NoteID,
		&job.JobType,
		&status,
		&payload,
		&progress,
		&job.Attempts,
		&lockedBy,
		&job.LockedAt,
		&reclaimedFrom,
		&job.CreatedAt,
		&job.StartedAt,
		&job.FinishedAt,
		&errorMessage,
	); err != nil {
		return nil, err
	}
	job.Status = Status(status)
	if len(payload) > 0 {
		job.Payload = payload
	}
	if progress != nil {
		v := int(*progress)
		job.Progress = &v
	}
	if lockedBy != nil {
		job.LockedBy = *lockedBy
	}
	if reclaimedFrom != nil {
		job.ReclaimedFrom = *reclaimedFrom
	}
	if errorMessage != nil {
		job.Error = *errorMessage
	}
	return &job, nil
}
