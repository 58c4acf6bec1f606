package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transkribator/internal/config"
	"transkribator/internal/logging"
	"transkribator/internal/pipeline"
	"transkribator/internal/queue"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(config.Telegram{BotToken: "tok", APIBaseURL: server.URL}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(config.Telegram{}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDownloadFetchesIntoWorkspace(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottok/getFile":
			if got := r.URL.Query().Get("file_id"); got != "abc" {
				t.Errorf("file_id = %q", got)
			}
			_, _ = io.WriteString(w, `{"ok":true,"result":{"file_id":"abc","file_path":"voice/file_1.oga"}}`)
		case "/file/bottok/voice/file_1.oga":
			_, _ = io.WriteString(w, "audio-bytes")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	workspace := t.TempDir()
	pc := &pipeline.Context{
		Job:       &queue.Job{ID: 1, UserID: 5},
		Payload:   pipeline.MediaPayload{FileID: "abc"},
		Artifacts: pipeline.Artifacts{WorkspaceDir: workspace},
	}
	path, err := client.Download(context.Background(), pc)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if path != filepath.Join(workspace, "file_1.oga") {
		t.Fatalf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "audio-bytes" {
		t.Fatalf("downloaded %q, %v", data, err)
	}
}

func TestGetFileReportsAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: invalid file_id"}`)
	})
	_, err := client.GetFile(context.Background(), "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.ErrorCode != 400 || !strings.Contains(apiErr.Description, "invalid file_id") {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestDeliverChoosesMessageOrDocument(t *testing.T) {
	var methods []string
	var chatIDs []int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, strings.TrimPrefix(r.URL.Path, "/bottok/"))
		switch r.URL.Path {
		case "/bottok/sendMessage":
			var body struct {
				ChatID int64  `json:"chat_id"`
				Text   string `json:"text"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			chatIDs = append(chatIDs, body.ChatID)
		case "/bottok/sendDocument":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			if r.FormValue("chat_id") != "99" {
				t.Errorf("chat_id = %q", r.FormValue("chat_id"))
			}
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	})

	chat := int64(99)
	pc := &pipeline.Context{
		Job:     &queue.Job{ID: 1, UserID: 5},
		Payload: pipeline.MediaPayload{FileID: "abc"},
	}
	pc.Artifacts.SetTranscript("short")
	if err := client.Deliver(context.Background(), pc); err != nil {
		t.Fatalf("Deliver short: %v", err)
	}

	pc.Payload.ChatID = &chat
	pc.Artifacts.SetTranscript(strings.Repeat("a", MaxMessageLength+1))
	if err := client.Deliver(context.Background(), pc); err != nil {
		t.Fatalf("Deliver long: %v", err)
	}

	if len(methods) != 2 || methods[0] != "sendMessage" || methods[1] != "sendDocument" {
		t.Fatalf("methods = %v", methods)
	}
	if len(chatIDs) != 1 || chatIDs[0] != 5 {
		t.Fatalf("chat ids = %v, want user id 5", chatIDs)
	}
}

func TestRedactErrHidesToken(t *testing.T) {
	err := redactErr(errors.New(`Get "https://api/botsecret/getFile": timeout`), "secret")
	if strings.Contains(err.Error(), "secret") {
		t.Fatalf("token leaked: %v", err)
	}
}

func TestGetMeReturnsBotAccount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottok/getMe" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":42,"is_bot":true,"username":"transkribator_bot"}}`)
	})
	user, err := client.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if user.ID != 42 || !user.IsBot || user.Username != "transkribator_bot" {
		t.Fatalf("unexpected user %+v", user)
	}
}
