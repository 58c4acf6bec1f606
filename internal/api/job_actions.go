package api

import (
	"context"
	"errors"

	"transkribator/internal/queue"
)

// JobActionService captures store operations needed by per-job release workflows.
type JobActionService interface {
	Describe(ctx context.Context, id int64) (*JobItem, error)
	Release(ctx context.Context, id int64) error
}

type ReleaseOutcome string

const (
	ReleaseUpdated       ReleaseOutcome = "released"
	ReleaseNotFound      ReleaseOutcome = "not_found"
	ReleaseNotInProgress ReleaseOutcome = "not_in_progress"
)

type ReleaseResult struct {
	ID          int64          `json:"id"`
	Outcome     ReleaseOutcome `json:"outcome"`
	PriorStatus string         `json:"prior_status,omitempty"`
}

type ReleaseJobsResult struct {
	UpdatedCount int             `json:"updated_count"`
	Jobs         []ReleaseResult `json:"jobs"`
}

// ReleaseJobsByID returns in-progress jobs to the queue. Jobs in any other
// state are reported and left alone.
func ReleaseJobsByID(ctx context.Context, service JobActionService, ids []int64) (ReleaseJobsResult, error) {
	result := ReleaseJobsResult{Jobs: make([]ReleaseResult, 0, len(ids))}
	for _, id := range ids {
		item, err := service.Describe(ctx, id)
		if err != nil {
			return ReleaseJobsResult{}, err
		}
		if item == nil {
			result.Jobs = append(result.Jobs, ReleaseResult{ID: id, Outcome: ReleaseNotFound})
			continue
		}
		if item.Status != string(queue.StatusInProgress) {
			result.Jobs = append(result.Jobs, ReleaseResult{ID: id, Outcome: ReleaseNotInProgress, PriorStatus: item.Status})
			continue
		}

		err = service.Release(ctx, id)
		switch {
		case err == nil:
			result.UpdatedCount++
			result.Jobs = append(result.Jobs, ReleaseResult{ID: id, Outcome: ReleaseUpdated, PriorStatus: item.Status})
		case errors.Is(err, queue.ErrInvalidTransition):
			// Finished between Describe and Release.
			result.Jobs = append(result.Jobs, ReleaseResult{ID: id, Outcome: ReleaseNotInProgress, PriorStatus: item.Status})
		case errors.Is(err, queue.ErrNotFound):
			result.Jobs = append(result.Jobs, ReleaseResult{ID: id, Outcome: ReleaseNotFound})
		default:
			return ReleaseJobsResult{}, err
		}
	}
	return result, nil
}

// StoreActions adapts a queue.Store to JobActionService.
type StoreActions struct {
	*JobService
	store queue.Store
}

// NewStoreActions wraps store for release workflows.
func NewStoreActions(store queue.Store) *StoreActions {
	return &StoreActions{JobService: NewJobService(store), store: store}
}

// Release returns an in-progress job to the queue.
func (a *StoreActions) Release(ctx context.Context, id int64) error {
	return a.store.Release(ctx, id)
}
