// Package statuscache mirrors job progress into Redis so the bot layer can
// render live status messages without polling the job table.
package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"transkribator/internal/progress"
	"transkribator/internal/queue"
)

// Snapshot is the cached view of one job.
type Snapshot struct {
	JobID     int64        `json:"job_id"`
	Progress  int          `json:"progress"`
	Message   string       `json:"message,omitempty"`
	Status    queue.Status `json:"status"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RedisMirror implements progress.Mirror on top of go-redis/v9. Each job is
// a hash at <prefix>:job:<id>; every change is also published on
// <prefix>:job-updates.
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisMirror creates a mirror from a Redis URL.
func NewRedisMirror(redisURL, prefix string, ttl time.Duration) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if prefix == "" {
		prefix = "transkribator"
	}
	return &RedisMirror{client: redis.NewClient(opts), prefix: prefix, ttl: ttl}, nil
}

// JobKey returns the hash key for jobID.
func (m *RedisMirror) JobKey(jobID int64) string {
	return fmt.Sprintf("%s:job:%d", m.prefix, jobID)
}

// Channel returns the pub/sub channel carrying JSON updates.
func (m *RedisMirror) Channel() string {
	return m.prefix + ":job-updates"
}

func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}

// Publish stores the latest progress and broadcasts it.
func (m *RedisMirror) Publish(ctx context.Context, update progress.Update) error {
	fields := map[string]any{
		"progress":   update.Progress,
		"status":     string(queue.StatusInProgress),
		"updated_at": update.At.UTC().Format(time.RFC3339Nano),
	}
	if update.Message != "" {
		fields["message"] = update.Message
	}
	return m.write(ctx, update.JobID, fields, update)
}

// RecordOutcome stores the terminal (or released) status of a job.
func (m *RedisMirror) RecordOutcome(ctx context.Context, job *queue.Job, status queue.Status, errMessage string) error {
	now := time.Now().UTC()
	fields := map[string]any{
		"status":     string(status),
		"updated_at": now.Format(time.RFC3339Nano),
	}
	if errMessage != "" {
		fields["error"] = errMessage
	}
	if status == queue.StatusCompleted {
		fields["progress"] = 100
	}
	event := map[string]any{
		"job_id":   job.ID,
		"user_id":  job.UserID,
		"job_type": job.JobType,
		"status":   status,
		"error":    errMessage,
		"at":       now,
	}
	return m.write(ctx, job.ID, fields, event)
}

func (m *RedisMirror) write(ctx context.Context, jobID int64, fields map[string]any, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}
	key := m.JobKey(jobID)
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	pipe.Publish(ctx, m.Channel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write job status %d: %w", jobID, err)
	}
	return nil
}

// Get reads the cached snapshot for jobID.
func (m *RedisMirror) Get(ctx context.Context, jobID int64) (Snapshot, bool, error) {
	values, err := m.client.HGetAll(ctx, m.JobKey(jobID)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(values) == 0) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	snap := Snapshot{
		JobID:   jobID,
		Message: values["message"],
		Status:  queue.Status(values["status"]),
		Error:   values["error"],
	}
	if raw, ok := values["progress"]; ok {
		snap.Progress, _ = strconv.Atoi(raw)
	}
	if raw, ok := values["updated_at"]; ok {
		snap.UpdatedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return snap, true, nil
}
