package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobItem describes a job in a transport-friendly format.
type JobItem struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	NoteID        *int64          `json:"note_id,omitempty"`
	JobType       string          `json:"job_type"`
	Status        string          `json:"status"`
	Progress      int             `json:"progress"`
	Attempts      int             `json:"attempts"`
	LockedBy      string          `json:"locked_by,omitempty"`
	LockedAt      string          `json:"locked_at,omitempty"`
	ReclaimedFrom string          `json:"reclaimed_from,omitempty"`
	ErrorMessage  string          `json:"error,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
	StartedAt     string          `json:"started_at,omitempty"`
	FinishedAt    string          `json:"finished_at,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// JobStatsResponse wraps job counts keyed by status.
type JobStatsResponse struct {
	Stats map[string]int `json:"stats"`
	Total int            `json:"total"`
}

// JobListResponse wraps a list of jobs.
type JobListResponse struct {
	Jobs []JobItem `json:"jobs"`
}
