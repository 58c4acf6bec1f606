package statusapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"transkribator/internal/api"
	"transkribator/internal/logging"
	"transkribator/internal/queue"
	"transkribator/internal/statuscache"
	"transkribator/internal/worker"
)

const pingTimeout = 3 * time.Second

// Store is the subset of queue.Store the endpoint reads.
type Store interface {
	api.JobReader
	Ping(ctx context.Context) error
}

// SnapshotSource reports the live worker state.
type SnapshotSource interface {
	Snapshot() worker.Snapshot
}

// LiveReader returns the mirrored progress of a job.
type LiveReader interface {
	Get(ctx context.Context, jobID int64) (statuscache.Snapshot, bool, error)
}

// Dependencies holds everything the router serves from.
type Dependencies struct {
	Store  Store
	Worker SnapshotSource
	Live   LiveReader
	Logger *slog.Logger
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Worker worker.Snapshot      `json:"worker"`
	Jobs   api.JobStatsResponse `json:"jobs"`
}

// JobResponse is the body of GET /jobs/{id}.
type JobResponse struct {
	Job  api.JobItem           `json:"job"`
	Live *statuscache.Snapshot `json:"live,omitempty"`
}

type handlers struct {
	deps Dependencies
	jobs *api.JobService
}

// NewRouter builds the chi router for the status endpoint.
func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	h := &handlers{deps: deps, jobs: api.NewJobService(deps.Store)}

	r := chi.NewRouter()
	r.Use(requestLogger(deps.Logger))
	r.Use(recovery(deps.Logger))

	r.Get("/healthz", h.health)
	r.Get("/status", h.status)
	r.Get("/jobs/{jobID}", h.job)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "job store not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()
	if err := h.deps.Store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	if h.deps.Worker != nil {
		resp.Worker = h.deps.Worker.Snapshot()
	}
	stats, err := h.jobs.Stats(r.Context())
	if err != nil {
		h.deps.Logger.Warn("status stats query failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "STATS_FAILED", err.Error())
		return
	}
	resp.Jobs = stats
	writeData(w, http.StatusOK, resp)
}

func (h *handlers) job(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_JOB_ID", "job id must be a positive integer")
		return
	}
	item, err := h.jobs.Describe(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LOOKUP_FAILED", err.Error())
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}

	resp := JobResponse{Job: *item}
	if h.deps.Live != nil && !queue.Status(item.Status).IsTerminal() {
		snap, found, err := h.deps.Live.Get(r.Context(), id)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			h.deps.Logger.Warn("live progress lookup failed",
				logging.Int64(logging.FieldJobID, id),
				logging.Error(err),
			)
		case found:
			resp.Live = &snap
		}
	}
	writeData(w, http.StatusOK, resp)
}
