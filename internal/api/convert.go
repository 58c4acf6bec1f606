package api

import (
	"encoding/json"
	"time"

	"transkribator/internal/queue"
)

// FromJob converts a store record to its API representation.
func FromJob(job *queue.Job) JobItem {
	if job == nil {
		return JobItem{}
	}

	dto := JobItem{
		ID:            job.ID,
		UserID:        job.UserID,
		JobType:       job.JobType,
		Status:        string(job.Status),
		Progress:      job.ProgressValue(),
		Attempts:      job.Attempts,
		LockedBy:      job.LockedBy,
		ReclaimedFrom: job.ReclaimedFrom,
		ErrorMessage:  job.Error,
		CreatedAt:     formatTime(&job.CreatedAt),
		LockedAt:      formatTime(job.LockedAt),
		StartedAt:     formatTime(job.StartedAt),
		FinishedAt:    formatTime(job.FinishedAt),
	}
	if job.NoteID != nil {
		id := *job.NoteID
		dto.NoteID = &id
	}
	if len(job.Payload) > 0 && json.Valid(job.Payload) {
		dto.Payload = append(json.RawMessage(nil), job.Payload...)
	}
	return dto
}

// FromJobs converts a slice of store records, skipping nil entries.
func FromJobs(jobs []*queue.Job) []JobItem {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobItem, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// MergeJobStats returns counts for every known status, zero-filled.
func MergeJobStats(stats queue.Stats) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses a timestamp produced by this package. It returns the zero
// time for empty or malformed values.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(dateTimeFormat, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
