package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"transkribator/internal/config"
	"transkribator/internal/queue"
)

const (
	userAgent       = "transkribator-worker"
	maxErrorPreview = 500
)

// Service is the alert surface used by the worker.
type Service interface {
	NotifyJobFailed(ctx context.Context, job *queue.Job, message string) error
	NotifyWorkerSummary(ctx context.Context, summary Summary) error
	TestNotification(ctx context.Context) error
}

// Summary describes a finished worker run.
type Summary struct {
	WorkerID  string
	Processed int
	Failed    int
	Runtime   time.Duration
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		jobFailures:   cfg.Notifications.JobFailures,
		workerSummary: cfg.Notifications.WorkerSummary,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	jobFailures   bool
	workerSummary bool
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job *queue.Job, message string) error {
	if !n.jobFailures || job == nil {
		return nil
	}
	message = strings.TrimSpace(message)
	if first, _, ok := strings.Cut(message, "\n"); ok {
		message = first
	}
	if runes := []rune(message); len(runes) > maxErrorPreview {
		message = string(runes[:maxErrorPreview]) + "…"
	}
	if message == "" {
		message = "unknown error"
	}
	data := payload{
		title:    "Transkribator - Job Failed",
		message:  fmt.Sprintf("❌ Job #%d (%s, user %d, attempt %d) failed: %s", job.ID, job.JobType, job.UserID, job.Attempts, message),
		tags:     []string{"transkribator", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyWorkerSummary(ctx context.Context, summary Summary) error {
	if !n.workerSummary {
		return nil
	}
	runtime := summary.Runtime.Round(time.Second)
	if runtime < 0 {
		runtime = 0
	}

	title := "Transkribator - Worker Stopped"
	message := fmt.Sprintf("Worker %s stopped: %d jobs processed in %s", summary.WorkerID, summary.Processed, runtime)
	if summary.Failed > 0 {
		title = "Transkribator - Worker Stopped (with errors)"
		message = fmt.Sprintf("Worker %s stopped: %d succeeded, %d failed in %s", summary.WorkerID, summary.Processed, summary.Failed, runtime)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"transkribator", "worker", "stopped"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Transkribator - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"transkribator", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobFailed(context.Context, *queue.Job, string) error { return nil }
func (noopService) NotifyWorkerSummary(context.Context, Summary) error        { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
