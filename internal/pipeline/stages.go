package pipeline

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage names used by DefaultStages.
const (
	StagePrepare    = "prepare_environment"
	StageDownload   = "download_media"
	StageTranscribe = "transcribe_media"
	StageFinalize   = "finalize_note"
	StageDeliver    = "deliver_results"
	StageCleanup    = "cleanup"
)

// Stage is one weighted step of the pipeline. Run returns the artifacts it
// produced; zero fields leave the context untouched.
type Stage interface {
	Name() string
	Label() string
	Weight() int
	Run(ctx context.Context, pc *Context) (Artifacts, error)
}

type stageRunner func(ctx context.Context, pc *Context) (Artifacts, error)

type serviceStage struct {
	name   string
	weight int
	run    stageRunner
}

// NewStage wraps fn as a Stage.
func NewStage(name string, weight int, fn func(ctx context.Context, pc *Context) (Artifacts, error)) Stage {
	return serviceStage{name: name, weight: weight, run: fn}
}

func (s serviceStage) Name() string { return s.name }

func (s serviceStage) Label() string { return stageLabel(s.name) }

func (s serviceStage) Weight() int { return s.weight }

func (s serviceStage) Run(ctx context.Context, pc *Context) (Artifacts, error) {
	return s.run(ctx, pc)
}

// DefaultStages returns prepare, download, transcribe, finalize, deliver and
// cleanup weighted 1, 3, 4, 2, 1, 1.
func DefaultStages() []Stage {
	return []Stage{
		NewStage(StagePrepare, 1, runPrepare),
		NewStage(StageDownload, 3, runDownload),
		NewStage(StageTranscribe, 4, runTranscribe),
		NewStage(StageFinalize, 2, runFinalize),
		NewStage(StageDeliver, 1, runDeliver),
		NewStage(StageCleanup, 1, runCleanup),
	}
}

func runPrepare(ctx context.Context, pc *Context) (Artifacts, error) {
	return Artifacts{}, pc.Services.Prepare(ctx, pc)
}

func runDownload(ctx context.Context, pc *Context) (Artifacts, error) {
	path, err := pc.Services.Download(ctx, pc)
	if err != nil {
		return Artifacts{}, err
	}
	if strings.TrimSpace(path) == "" {
		return Artifacts{}, errors.New("downloader did not return a media path")
	}
	return Artifacts{MediaPath: path}, nil
}

func runTranscribe(ctx context.Context, pc *Context) (Artifacts, error) {
	if pc.Artifacts.MediaPath == "" {
		return Artifacts{}, errors.New("media path is missing; download stage must run first")
	}
	text, err := pc.Services.Transcribe(ctx, pc, pc.Artifacts.MediaPath)
	if err != nil {
		return Artifacts{}, err
	}
	out := Artifacts{}
	out.SetTranscript(text)
	return out, nil
}

func runFinalize(ctx context.Context, pc *Context) (Artifacts, error) {
	if !pc.Artifacts.HasTranscript {
		return Artifacts{}, errors.New("transcript is missing; transcription stage must run first")
	}
	note, err := pc.Services.Finalize(ctx, pc, pc.Artifacts.Transcript)
	if err != nil {
		return Artifacts{}, err
	}
	return Artifacts{Note: note}, nil
}

func runDeliver(ctx context.Context, pc *Context) (Artifacts, error) {
	return Artifacts{}, pc.Services.Deliver(ctx, pc)
}

func runCleanup(ctx context.Context, pc *Context) (Artifacts, error) {
	return Artifacts{}, pc.Services.Cleanup(ctx, pc)
}

func stageLabel(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return "Stage"
	}
	return cases.Title(language.Und).String(name)
}
