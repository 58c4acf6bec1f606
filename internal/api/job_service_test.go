package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"transkribator/internal/queue"
)

type mockJobReader struct {
	jobs     []*queue.Job
	stats    queue.Stats
	listErr  error
	statsErr error
	getErr   error
	filter   queue.ListFilter
}

func (m *mockJobReader) List(_ context.Context, filter queue.ListFilter) ([]*queue.Job, error) {
	m.filter = filter
	return m.jobs, m.listErr
}

func (m *mockJobReader) Stats(context.Context) (queue.Stats, error) {
	return m.stats, m.statsErr
}

func (m *mockJobReader) Get(_ context.Context, id int64) (*queue.Job, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, job := range m.jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return nil, fmt.Errorf("job %d: %w", id, queue.ErrNotFound)
}

func TestJobService_List(t *testing.T) {
	now := time.Now().UTC()
	progress := 42
	noteID := int64(7)
	reader := &mockJobReader{
		jobs: []*queue.Job{{
			ID:        1,
			UserID:    9,
			NoteID:    &noteID,
			JobType:   "media_processing",
			Status:    queue.StatusInProgress,
			Progress:  &progress,
			LockedBy:  "worker-a",
			LockedAt:  &now,
			CreatedAt: now,
			Payload:   []byte(`{"file_id":"abc"}`),
		}},
	}
	svc := NewJobService(reader)
	filter := queue.ListFilter{Statuses: []queue.Status{queue.StatusInProgress}, Limit: 5}
	got, err := svc.List(context.Background(), filter)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected job count: %d", len(got))
	}
	if reader.filter.Limit != 5 || len(reader.filter.Statuses) != 1 {
		t.Fatalf("filter not forwarded: %+v", reader.filter)
	}
	item := got[0]
	if item.Status != "in_progress" || item.Progress != 42 || item.LockedBy != "worker-a" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if item.NoteID == nil || *item.NoteID != 7 {
		t.Fatalf("unexpected note id: %v", item.NoteID)
	}
	if item.CreatedAt == "" || item.LockedAt == "" {
		t.Fatalf("expected timestamps to be formatted")
	}
	if item.StartedAt != "" || item.FinishedAt != "" {
		t.Fatalf("expected unset timestamps to stay empty: %+v", item)
	}
	if string(item.Payload) != `{"file_id":"abc"}` {
		t.Fatalf("unexpected payload: %s", item.Payload)
	}
}

func TestJobService_ListError(t *testing.T) {
	errSentinel := errors.New("boom")
	svc := NewJobService(&mockJobReader{listErr: errSentinel})
	_, err := svc.List(context.Background(), queue.ListFilter{})
	if !errors.Is(err, errSentinel) {
		t.Fatalf("expected error %v, got %v", errSentinel, err)
	}
}

func TestJobService_StatsZeroFillsStatuses(t *testing.T) {
	svc := NewJobService(&mockJobReader{stats: queue.Stats{
		queue.StatusQueued: 2,
		queue.StatusFailed: 1,
	}})
	got, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if got.Total != 3 {
		t.Fatalf("unexpected total: %d", got.Total)
	}
	if len(got.Stats) != len(queue.AllStatuses()) {
		t.Fatalf("expected every status, got %v", got.Stats)
	}
	if got.Stats["queued"] != 2 || got.Stats["completed"] != 0 {
		t.Fatalf("unexpected stats: %v", got.Stats)
	}
}

func TestJobService_DescribeMissingReturnsNil(t *testing.T) {
	svc := NewJobService(&mockJobReader{})
	got, err := svc.Describe(context.Background(), 99)
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil item, got %+v", got)
	}
}

func TestJobService_DescribePropagatesErrors(t *testing.T) {
	errSentinel := errors.New("db down")
	svc := NewJobService(&mockJobReader{getErr: errSentinel})
	if _, err := svc.Describe(context.Background(), 1); !errors.Is(err, errSentinel) {
		t.Fatalf("expected %v, got %v", errSentinel, err)
	}
}

func TestNilJobServiceIsSafe(t *testing.T) {
	var svc *JobService
	if got, err := svc.List(context.Background(), queue.ListFilter{}); err != nil || got != nil {
		t.Fatalf("unexpected list result %v %v", got, err)
	}
	if got, err := svc.Describe(context.Background(), 1); err != nil || got != nil {
		t.Fatalf("unexpected describe result %v %v", got, err)
	}
}

func TestSortJobsNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []JobItem{
		{ID: 1, CreatedAt: base.Format(dateTimeFormat)},
		{ID: 2, CreatedAt: base.Add(time.Minute).Format(dateTimeFormat)},
		{ID: 3, CreatedAt: base.Format(dateTimeFormat)},
	}
	got := SortJobsNewestFirst(items)
	want := []int64{2, 3, 1}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %d, got %d", i, id, got[i].ID)
		}
	}
	if items[0].ID != 1 {
		t.Fatal("input slice must not be reordered")
	}
}
