package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"transkribator/internal/config"
	"transkribator/internal/notifications"
	"transkribator/internal/queue"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newServer(t *testing.T) (*httptest.Server, *[]captured) {
	t.Helper()
	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobFailed(context.Background(), &queue.Job{ID: 1}, "boom"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("nil config: %v", err)
	}
}

func TestJobFailedUsesFirstLine(t *testing.T) {
	server, requests := newServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	job := &queue.Job{ID: 12, UserID: 7, JobType: "media_processing", Attempts: 2}
	if err := svc.NotifyJobFailed(context.Background(), job, "stage transcribe_media: boom\ngoroutine 1 [running]:"); err != nil {
		t.Fatalf("NotifyJobFailed: %v", err)
	}
	if len(*requests) != 1 {
		t.Fatalf("requests = %d", len(*requests))
	}
	got := (*requests)[0]
	if got.title != "Transkribator - Job Failed" || got.priority != "high" || got.tags != "transkribator,job,failed" {
		t.Fatalf("unexpected headers %+v", got)
	}
	if !strings.Contains(got.body, "Job #12") || !strings.Contains(got.body, "boom") || strings.Contains(got.body, "goroutine") {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestWorkerSummaryRespectsToggle(t *testing.T) {
	server, requests := newServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.WorkerSummary = false

	svc := notifications.NewService(&cfg)
	summary := notifications.Summary{WorkerID: "w1", Processed: 3, Failed: 1, Runtime: 90 * time.Second}
	if err := svc.NotifyWorkerSummary(context.Background(), summary); err != nil {
		t.Fatalf("NotifyWorkerSummary: %v", err)
	}
	if len(*requests) != 0 {
		t.Fatalf("summary sent while disabled")
	}

	cfg.Notifications.WorkerSummary = true
	svc = notifications.NewService(&cfg)
	if err := svc.NotifyWorkerSummary(context.Background(), summary); err != nil {
		t.Fatalf("NotifyWorkerSummary: %v", err)
	}
	got := (*requests)[0]
	if got.title != "Transkribator - Worker Stopped (with errors)" {
		t.Fatalf("title = %q", got.title)
	}
	if got.body != "Worker w1 stopped: 3 succeeded, 1 failed in 1m30s" {
		t.Fatalf("body = %q", got.body)
	}
}

func TestSendReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
