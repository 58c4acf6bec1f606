package queue

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"transkribator/internal/logging"
)

const jobColumns = "id, user_id, note_id, job_type, status, payload, progress, attempts, locked_by, locked_at, reclaimed_from, created_at, started_at, finished_at, error"

func scanSQLiteJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job           Job
		noteID        sql.NullInt64
		statusStr     string
		payload       sql.NullString
		progress      sql.NullInt64
		lockedBy      sql.NullString
		lockedAt      sql.NullString
		reclaimedFrom sql.NullString
		createdRaw    string
		startedRaw    sql.NullString
		finishedRaw   sql.NullString
		errorMessage  sql.NullString
	)

	if err := scanner.Scan(
		&job.ID,
		&job.UserID,
		&noteID,
		&job.JobType,
		&statusStr,
		&payload,
		&progress,
		&job.Attempts,
		&lockedBy,
		&lockedAt,
		&reclaimedFrom,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	job.Status = Status(statusStr)
	if noteID.Valid {
		v := noteID.Int64
		job.NoteID = &v
	}
	if payload.Valid && payload.String != "" {
		job.Payload = []byte(payload.String)
	}
	if progress.Valid {
		v := int(progress.Int64)
		job.Progress = &v
	}
	job.LockedBy = lockedBy.String
	job.ReclaimedFrom = reclaimedFrom.String
	job.Error = errorMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	job.LockedAt = parseNullableTime(lockedAt)
	job.StartedAt = parseNullableTime(startedRaw)
	job.FinishedAt = parseNullableTime(finishedRaw)
	return &job, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func newStats() Stats {
	stats := make(Stats, len(allStatuses))
	for _, status := range allStatuses {
		stats[status] = 0
	}
	return stats
}

func logAcquired(logger *slog.Logger, job *Job, workerID string) {
	attrs := []logging.Attr{
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, job.JobType),
		logging.String(logging.FieldWorkerID, workerID),
		logging.Int("attempts", job.Attempts),
	}
	if job.ReclaimedFrom != "" {
		logging.WarnWithContext(logger, "reclaiming stale job", "job_reclaimed",
			append(attrs,
				logging.String("previous_worker", job.ReclaimedFrom),
				logging.String(logging.FieldErrorHint, "previous worker stopped heartbeating; the job may run twice"),
			)...)
		return
	}
	logger.Debug("job acquired", logging.Args(attrs...)...)
}
