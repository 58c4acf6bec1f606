package api

import (
	"context"
	"errors"

	"transkribator/internal/queue"
)

// JobReader abstracts store interactions needed for API queries.
type JobReader interface {
	List(ctx context.Context, filter queue.ListFilter) ([]*queue.Job, error)
	Stats(ctx context.Context) (queue.Stats, error)
	Get(ctx context.Context, id int64) (*queue.Job, error)
}

// JobService exposes read-only job operations returning API DTOs.
type JobService struct {
	store JobReader
}

// NewJobService constructs a JobService around the provided reader.
func NewJobService(store JobReader) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{store: store}
}

// List returns jobs matching filter.
func (s *JobService) List(ctx context.Context, filter queue.ListFilter) ([]JobItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Stats returns job counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (JobStatsResponse, error) {
	if s == nil || s.store == nil {
		return JobStatsResponse{Stats: map[string]int{}}, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return JobStatsResponse{}, err
	}
	return JobStatsResponse{Stats: MergeJobStats(stats), Total: stats.Total()}, nil
}

// Describe fetches a single job. It returns nil without error when the job
// does not exist.
func (s *JobService) Describe(ctx context.Context, id int64) (*JobItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.Get(ctx, id)
	if errors.Is(err, queue.ErrNotFound) {
		return nil, nil
	}
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}
