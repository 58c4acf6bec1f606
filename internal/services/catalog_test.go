package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"transkribator/internal/config"
	"transkribator/internal/logging"
	"transkribator/internal/pipeline"
)

func taggedServices(tag string, log *[]string) pipeline.Services {
	record := func(kind string) { *log = append(*log, kind+":"+tag) }
	return pipeline.Services{
		Prepare:  func(context.Context, *pipeline.Context) error { record("prepare"); return nil },
		Download: func(context.Context, *pipeline.Context) (string, error) { record("download"); return "p", nil },
		Transcribe: func(context.Context, *pipeline.Context, string) (string, error) {
			record("transcribe")
			return "t", nil
		},
		Finalize: func(context.Context, *pipeline.Context, string) (*pipeline.Note, error) {
			record("finalize")
			return nil, nil
		},
		Deliver: func(context.Context, *pipeline.Context) error { record("deliver"); return nil },
		Cleanup: func(context.Context, *pipeline.Context) error { record("cleanup"); return nil },
	}
}

func exercise(t *testing.T, s pipeline.Services) {
	t.Helper()
	ctx := context.Background()
	pc := &pipeline.Context{}
	_ = s.Prepare(ctx, pc)
	_, _ = s.Download(ctx, pc)
	_, _ = s.Transcribe(ctx, pc, "")
	_, _ = s.Finalize(ctx, pc, "")
	_ = s.Deliver(ctx, pc)
	_ = s.Cleanup(ctx, pc)
}

func TestCatalogBuild(t *testing.T) {
	var calls []string
	catalog := NewCatalog(taggedServices("default", &calls), logging.NewNop())
	catalog.RegisterProvider("fast", pipeline.Services{
		Transcribe: func(context.Context, *pipeline.Context, string) (string, error) {
			calls = append(calls, "transcribe:fast")
			return "", nil
		},
	})
	setInvocations := 0
	catalog.RegisterSet("stub", func() (pipeline.Services, error) {
		setInvocations++
		return taggedServices("stub", &calls), nil
	})

	tests := []struct {
		spec string
		want []string
		sets int
	}{
		{spec: "", want: []string{"prepare:default", "download:default", "transcribe:default", "finalize:default", "deliver:default", "cleanup:default"}},
		{spec: "transcribe=fast", want: []string{"prepare:default", "download:default", "transcribe:fast", "finalize:default", "deliver:default", "cleanup:default"}},
		{spec: "set:stub", want: []string{"prepare:stub", "download:stub", "transcribe:stub", "finalize:stub", "deliver:stub", "cleanup:stub"}, sets: 1},
		{spec: " SET:stub , transcribe=fast ", want: []string{"prepare:stub", "download:stub", "transcribe:fast", "finalize:stub", "deliver:stub", "cleanup:stub"}, sets: 1},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			calls = nil
			setInvocations = 0
			built, err := catalog.Build(tt.spec)
			if err != nil {
				t.Fatalf("Build(%q): %v", tt.spec, err)
			}
			exercise(t, built)
			if strings.Join(calls, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("calls = %v, want %v", calls, tt.want)
			}
			if setInvocations != tt.sets {
				t.Fatalf("set factory invoked %d times, want %d", setInvocations, tt.sets)
			}
		})
	}
}

func TestCatalogBuildErrors(t *testing.T) {
	var calls []string
	catalog := NewCatalog(taggedServices("default", &calls), nil)
	catalog.RegisterProvider("fast", pipeline.Services{Transcribe: taggedServices("fast", &calls).Transcribe})
	catalog.RegisterSet("broken", func() (pipeline.Services, error) { return pipeline.Services{}, errors.New("no creds") })

	tests := []struct {
		spec     string
		sentinel error
		contains string
	}{
		{spec: "set:missing", sentinel: ErrUnknownService, contains: "broken"},
		{spec: "download=nowhere", sentinel: ErrUnknownService, contains: "fast"},
		{spec: "download=fast", sentinel: ErrUnknownService, contains: "no download service"},
		{spec: "upload=fast", sentinel: ErrUnknownService, contains: "transcribe"},
		{spec: "transcribe", sentinel: ErrInvalidOverride},
		{spec: "set:", sentinel: ErrInvalidOverride},
		{spec: "set:a,set:b", sentinel: ErrInvalidOverride},
		{spec: "set:broken", contains: "no creds"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := catalog.Build(tt.spec)
			if err == nil {
				t.Fatalf("Build(%q) succeeded", tt.spec)
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Fatalf("Build(%q) = %v, want %v", tt.spec, err, tt.sentinel)
			}
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Fatalf("error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

func TestDefaultCatalogWithoutCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkspaceRoot = t.TempDir()
	catalog := NewDefaultCatalog(&cfg, logging.NewNop())

	if got := strings.Join(catalog.Providers(), ","); got != "local" {
		t.Fatalf("providers = %s", got)
	}
	if _, err := catalog.Build(""); err != nil {
		t.Fatalf("default build: %v", err)
	}
	if _, err := catalog.Build("set:stub"); err != nil {
		t.Fatalf("stub build: %v", err)
	}
	if _, err := catalog.Build("set:production"); err == nil {
		t.Fatal("production set should require credentials")
	}
	if _, err := catalog.Build("download=telegram"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("expected unknown telegram provider, got %v", err)
	}
}

func TestDefaultCatalogWithCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkspaceRoot = t.TempDir()
	cfg.Telegram.BotToken = "tok"
	cfg.Transcription.APIKey = "key"
	catalog := NewDefaultCatalog(&cfg, nil)

	if got := strings.Join(catalog.Providers(), ","); got != "local,telegram,whisper" {
		t.Fatalf("providers = %s", got)
	}
	if _, err := catalog.Build("set:production"); err != nil {
		t.Fatalf("production build: %v", err)
	}
	if _, err := catalog.Build("set:stub,deliver=telegram"); err != nil {
		t.Fatalf("mixed build: %v", err)
	}
}
