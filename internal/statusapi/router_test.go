package statusapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transkribator/internal/queue"
	"transkribator/internal/statusapi"
	"transkribator/internal/statuscache"
	"transkribator/internal/testsupport"
	"transkribator/internal/worker"
)

type fixedSnapshot worker.Snapshot

func (f fixedSnapshot) Snapshot() worker.Snapshot { return worker.Snapshot(f) }

type stubLive struct {
	snap  statuscache.Snapshot
	found bool
	err   error
	calls int
}

func (s *stubLive) Get(_ context.Context, _ int64) (statuscache.Snapshot, bool, error) {
	s.calls++
	return s.snap, s.found, s.err
}

type failingStore struct {
	statusapi.Store
}

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func do(handler http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), nil)

	rec := do(statusapi.NewRouter(statusapi.Dependencies{Store: store}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]string `json:"data"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body.Data["status"])

	rec = do(statusapi.NewRouter(statusapi.Dependencies{Store: failingStore{Store: store}}), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var errBody struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode(t, rec, &errBody)
	assert.Equal(t, "STORE_UNAVAILABLE", errBody.Error.Code)
	assert.Contains(t, errBody.Error.Message, "connection refused")
}

func TestStatusReportsSnapshotAndCounts(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), nil)
	testsupport.MustEnqueue(t, store, "media_processing", map[string]any{"file_id": "a"})
	testsupport.MustEnqueue(t, store, "media_processing", map[string]any{"file_id": "b"})

	snap := fixedSnapshot{WorkerID: "worker-1", State: worker.StateIdle, Processed: 3}
	rec := do(statusapi.NewRouter(statusapi.Dependencies{Store: store, Worker: snap}), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data statusapi.StatusResponse `json:"data"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "worker-1", body.Data.Worker.WorkerID)
	assert.Equal(t, worker.StateIdle, body.Data.Worker.State)
	assert.Equal(t, 3, body.Data.Worker.Processed)
	assert.Equal(t, 2, body.Data.Jobs.Total)
	assert.Equal(t, 2, body.Data.Jobs.Stats["queued"])
	assert.Equal(t, 0, body.Data.Jobs.Stats["failed"])
}

func TestJobLookup(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), nil)
	job := testsupport.MustEnqueue(t, store, "media_processing", map[string]any{"file_id": "a"})
	live := &stubLive{found: true, snap: statuscache.Snapshot{JobID: job.ID, Progress: 33, Message: "Transcribe Media"}}
	router := statusapi.NewRouter(statusapi.Dependencies{Store: store, Live: live})

	rec := do(router, "/jobs/"+jsonNumber(job.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data statusapi.JobResponse `json:"data"`
	}
	decode(t, rec, &body)
	assert.Equal(t, job.ID, body.Data.Job.ID)
	assert.Equal(t, string(queue.StatusQueued), body.Data.Job.Status)
	require.NotNil(t, body.Data.Live)
	assert.Equal(t, 33, body.Data.Live.Progress)
	assert.Equal(t, 1, live.calls)
}

func TestJobLookupSkipsLiveForTerminalJobs(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), nil)
	job := testsupport.MustEnqueue(t, store, "media_processing", nil)
	acquired, err := store.Acquire(ctx, "w", nil)
	require.NoError(t, err)
	require.NotNil(t, acquired)
	require.NoError(t, store.Complete(ctx, job.ID))

	live := &stubLive{found: true}
	rec := do(statusapi.NewRouter(statusapi.Dependencies{Store: store, Live: live}), "/jobs/"+jsonNumber(job.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, live.calls)
}

func TestJobLookupErrors(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), nil)
	router := statusapi.NewRouter(statusapi.Dependencies{Store: store})

	tests := []struct {
		path string
		code int
		err  string
	}{
		{path: "/jobs/abc", code: http.StatusBadRequest, err: "INVALID_JOB_ID"},
		{path: "/jobs/0", code: http.StatusBadRequest, err: "INVALID_JOB_ID"},
		{path: "/jobs/4242", code: http.StatusNotFound, err: "NOT_FOUND"},
		{path: "/nope", code: http.StatusNotFound, err: "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(router, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			decode(t, rec, &body)
			assert.Equal(t, tt.err, body.Error.Code)
		})
	}
}

func jsonNumber(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
