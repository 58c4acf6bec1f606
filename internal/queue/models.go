package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusQueued, StatusInProgress, StatusCompleted, StatusFailed}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a user-supplied string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MaxErrorBytes bounds the failure message persisted with a job.
const MaxErrorBytes = 4000

// Job is a unit of background work as stored in processing_jobs.
type Job struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	NoteID        *int64          `json:"note_id,omitempty"`
	JobType       string          `json:"job_type"`
	Status        Status          `json:"status"`
	Payload       json.RawMessage `json:"payload"`
	Progress      *int            `json:"progress,omitempty"`
	Attempts      int             `json:"attempts"`
	LockedBy      string          `json:"locked_by,omitempty"`
	LockedAt      *time.Time      `json:"locked_at,omitempty"`
	ReclaimedFrom string          `json:"reclaimed_from,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// ProgressValue returns the recorded progress or zero when unset.
func (j *Job) ProgressValue() int {
	if j == nil || j.Progress == nil {
		return 0
	}
	return *j.Progress
}

// DecodePayload unmarshals the job payload into dst.
func (j *Job) DecodePayload(dst any) error {
	if j == nil {
		return fmt.Errorf("decode payload: nil job")
	}
	raw := j.Payload
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode payload for job %d: %w", j.ID, err)
	}
	return nil
}

// EnqueueParams describes a new job.
type EnqueueParams struct {
	UserID  int64
	JobType string
	Payload any
	NoteID  *int64
}

// ListFilter narrows List results. Zero values mean no filtering; Limit <= 0
// returns every match.
type ListFilter struct {
	Statuses []Status
	JobTypes []string
	Limit    int
}

// Stats holds job counts keyed by status.
type Stats map[Status]int

// Total sums all status counts.
func (s Stats) Total() int {
	total := 0
	for _, count := range s {
		total += count
	}
	return total
}
