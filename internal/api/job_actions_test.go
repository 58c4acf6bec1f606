package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"transkribator/internal/queue"
)

type jobActionStub struct {
	items      map[int64]*JobItem
	releaseErr map[int64]error
	released   []int64
}

func (s *jobActionStub) Describe(_ context.Context, id int64) (*JobItem, error) {
	if item, ok := s.items[id]; ok {
		return item, nil
	}
	return nil, nil
}

func (s *jobActionStub) Release(_ context.Context, id int64) error {
	if err := s.releaseErr[id]; err != nil {
		return err
	}
	s.released = append(s.released, id)
	return nil
}

func TestReleaseJobsByID(t *testing.T) {
	stub := &jobActionStub{
		items: map[int64]*JobItem{
			1: {ID: 1, Status: "in_progress"},
			2: {ID: 2, Status: "completed"},
			4: {ID: 4, Status: "in_progress"},
		},
		releaseErr: map[int64]error{
			4: fmt.Errorf("release job 4: %w", queue.ErrInvalidTransition),
		},
	}

	result, err := ReleaseJobsByID(context.Background(), stub, []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("ReleaseJobsByID: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Fatalf("UpdatedCount = %d, want 1", result.UpdatedCount)
	}
	want := []ReleaseOutcome{ReleaseUpdated, ReleaseNotInProgress, ReleaseNotFound, ReleaseNotInProgress}
	for i, outcome := range want {
		if result.Jobs[i].Outcome != outcome {
			t.Fatalf("job %d outcome = %s, want %s", result.Jobs[i].ID, result.Jobs[i].Outcome, outcome)
		}
	}
	if result.Jobs[1].PriorStatus != "completed" {
		t.Fatalf("expected prior status to be reported, got %q", result.Jobs[1].PriorStatus)
	}
	if len(stub.released) != 1 || stub.released[0] != 1 {
		t.Fatalf("unexpected releases %v", stub.released)
	}
}

func TestReleaseJobsByIDStopsOnStoreError(t *testing.T) {
	errSentinel := errors.New("db down")
	stub := &jobActionStub{
		items:      map[int64]*JobItem{1: {ID: 1, Status: "in_progress"}},
		releaseErr: map[int64]error{1: errSentinel},
	}
	if _, err := ReleaseJobsByID(context.Background(), stub, []int64{1}); !errors.Is(err, errSentinel) {
		t.Fatalf("expected %v, got %v", errSentinel, err)
	}
}
