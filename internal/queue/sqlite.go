package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"transkribator/internal/logging"
)

// SQLiteStore manages job persistence backed by SQLite. Acquire is a single
// UPDATE ... RETURNING statement, so SQLite's writer lock serialises
// concurrent claims from multiple processes sharing the file.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	lockTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// sqliteTimeLayout is fixed width so lexical order matches time order.
	sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// OpenSQLite opens (creating if needed) the SQLite database at opts.URL.
func OpenSQLite(ctx context.Context, opts Options) (*SQLiteStore, error) {
	ctx = ensureContext(ctx)
	opts = opts.withDefaults()
	path := sqlitePath(opts.URL)

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &SQLiteStore{
		db:          db,
		path:        path,
		lockTimeout: opts.LockTimeout,
		logger:      opts.Logger.With(logging.String("backend", "sqlite")),
		now:         opts.Now,
	}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// sqliteDSN applies the pragmas through the DSN so that every pooled
// connection gets them, not just the first one.
func sqliteDSN(path string) string {
	pragmas := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}
	return path + "?" + strings.Join(pragmas, "&")
}

func sqlitePath(url string) string {
	path := strings.TrimSpace(url)
	switch {
	case strings.HasPrefix(path, "sqlite:///"):
		return "/" + strings.TrimPrefix(path, "sqlite:///")
	case strings.HasPrefix(path, "sqlite://"):
		return strings.TrimPrefix(path, "sqlite://")
	case strings.HasPrefix(path, "file:"):
		return strings.TrimPrefix(path, "file:")
	}
	return path
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ensureContext(ctx))
}

func (s *SQLiteStore) timestamp() string {
	return formatSQLiteTime(s.now())
}

func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Enqueue inserts a queued job.
func (s *SQLiteStore) Enqueue(ctx context.Context, params EnqueueParams) (*Job, error) {
	ctx = ensureContext(ctx)
	if err := validateEnqueue(params); err != nil {
		return nil, err
	}
	payload, err := encodePayload(params.Payload)
	if err != nil {
		return nil, err
	}

	var job *Job
	err = retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`INSERT INTO processing_jobs (user_id, note_id, job_type, status, payload, attempts, created_at)
			 VALUES (?, ?, ?, ?, ?, 0, ?)
			 RETURNING `+jobColumns,
			params.UserID, nullableInt64(params.NoteID), strings.TrimSpace(params.JobType),
			string(StatusQueued), string(payload), s.timestamp(),
		)
		var scanErr error
		job, scanErr = scanSQLiteJob(row)
		return scanErr
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	s.logger.Debug("job enqueued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, job.JobType),
	)
	return job, nil
}

// Acquire claims the oldest queued or stale in-progress job.
func (s *SQLiteStore) Acquire(ctx context.Context, workerID string, jobTypes []string) (*Job, error) {
	ctx = ensureContext(ctx)
	now := s.now()
	stamp := formatSQLiteTime(now)
	cutoff := formatSQLiteTime(now.Add(-s.lockTimeout))

	query := `UPDATE processing_jobs
		SET status = 'in_progress',
		    reclaimed_from = CASE WHEN status = 'in_progress' THEN locked_by END,
		    locked_by = ?,
		    locked_at = ?,
		    attempts = attempts + 1,
		    started_at = COALESCE(started_at, ?)
		WHERE id = (
		    SELECT id FROM processing_jobs
		    WHERE (status = 'queued'
		           OR (status = 'in_progress' AND (locked_at IS NULL OR locked_at < ?)))`
	args := []any{workerID, stamp, stamp, cutoff}
	if len(jobTypes) > 0 {
		query += " AND job_type IN (" + makePlaceholders(len(jobTypes)) + ")"
		for _, jobType := range jobTypes {
			args = append(args, jobType)
		}
	}
	query += `
		    ORDER BY created_at ASC, id ASC
		    LIMIT 1
		)
		RETURNING ` + jobColumns

	var job *Job
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		job, scanErr = scanSQLiteJob(s.db.QueryRowContext(ctx, query, args...))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire job: %w", err)
	}
	logAcquired(s.logger, job, workerID)
	return job, nil
}

// MarkProgress records progress and refreshes the heartbeat.
func (s *SQLiteStore) MarkProgress(ctx context.Context, id int64, progress int) error {
	return s.transition(ctx, "mark progress", id,
		`UPDATE processing_jobs SET progress = ?, locked_at = ? WHERE id = ? AND status = 'in_progress'`,
		clampProgress(progress), s.timestamp(), id)
}

// Complete marks an in-progress job completed.
func (s *SQLiteStore) Complete(ctx context.Context, id int64) error {
	return s.transition(ctx, "complete job", id,
		`UPDATE processing_jobs
		 SET status = 'completed', finished_at = ?, locked_by = NULL, locked_at = NULL, error = NULL
		 WHERE id = ? AND status = 'in_progress'`,
		s.timestamp(), id)
}

// Fail marks an in-progress job failed, storing a truncated message.
func (s *SQLiteStore) Fail(ctx context.Context, id int64, message string) error {
	return s.transition(ctx, "fail job", id,
		`UPDATE processing_jobs
		 SET status = 'failed', finished_at = ?, locked_by = NULL, locked_at = NULL, error = ?
		 WHERE id = ? AND status = 'in_progress'`,
		s.timestamp(), TruncateError(message), id)
}

// Release returns an in-progress job to the queue.
func (s *SQLiteStore) Release(ctx context.Context, id int64) error {
	return s.transition(ctx, "release job", id,
		`UPDATE processing_jobs
		 SET status = 'queued', locked_by = NULL, locked_at = NULL
		 WHERE id = ? AND status = 'in_progress'`,
		id)
}

func (s *SQLiteStore) transition(ctx context.Context, op string, id int64, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: rows affected: %w", op, id, err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	return fmt.Errorf("%s %d: %w", op, id, ErrInvalidTransition)
}

// Get fetches a job by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	job, err := scanSQLiteJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM processing_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// List returns jobs matching filter, oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM processing_jobs`
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if len(filter.JobTypes) > 0 {
		clauses = append(clauses, "job_type IN ("+makePlaceholders(len(filter.JobTypes))+")")
		for _, jobType := range filter.JobTypes {
			args = append(args, jobType)
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns job counts per status, including zero counts.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM processing_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := newStats()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job stats: %w", err)
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}
