package worker

import "time"

// State is the coarse position of the worker loop.
type State string

const (
	StateIdle       State = "idle"
	StatePolling    State = "polling"
	StateProcessing State = "processing"
	StateStopping   State = "stopping"
)

// Snapshot is a point-in-time view of the worker.
type Snapshot struct {
	WorkerID     string    `json:"worker_id"`
	State        State     `json:"state"`
	CurrentJobID *int64    `json:"current_job_id,omitempty"`
	Processed    int       `json:"processed"`
	Failed       int       `json:"failed"`
	StartedAt    time.Time `json:"started_at"`
	Uptime       string    `json:"uptime"`
}

// Summary reports the totals of a finished run.
type Summary struct {
	Processed       int
	Failed          int
	Runtime         time.Duration
	AverageDuration time.Duration
}

// Total returns processed plus failed jobs.
func (s Summary) Total() int {
	return s.Processed + s.Failed
}

// Snapshot returns the current worker state.
func (w *Worker) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := Snapshot{
		WorkerID:  w.cfg.WorkerID,
		State:     w.state,
		Processed: w.processed,
		Failed:    w.failed,
		StartedAt: w.startedAt,
	}
	if w.current != nil {
		id := w.current.ID
		snap.CurrentJobID = &id
	}
	if !w.startedAt.IsZero() {
		snap.Uptime = w.now().Sub(w.startedAt).Round(time.Second).String()
	}
	return snap
}

func (w *Worker) setState(state State) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
}
