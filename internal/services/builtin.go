package services

import (
	"errors"
	"fmt"
	"log/slog"

	"transkribator/internal/config"
	"transkribator/internal/pipeline"
	"transkribator/internal/services/local"
	"transkribator/internal/services/telegram"
	"transkribator/internal/services/whisper"
)

// Built-in provider and set names.
const (
	ProviderLocal    = "local"
	ProviderTelegram = "telegram"
	ProviderWhisper  = "whisper"

	SetStub       = "stub"
	SetProduction = "production"
)

// NewDefaultCatalog registers the local, telegram and whisper providers plus
// the stub and production sets. Telegram and whisper are only registered
// when their credentials are configured; the production set reports the
// missing credential when selected.
func NewDefaultCatalog(cfg *config.Config, logger *slog.Logger) *Catalog {
	provider := local.New(cfg.Paths.WorkspaceRoot, logger)
	defaults := provider.Services()
	catalog := NewCatalog(defaults, logger)
	catalog.RegisterProvider(ProviderLocal, defaults)
	catalog.RegisterSet(SetStub, func() (pipeline.Services, error) {
		return local.New(cfg.Paths.WorkspaceRoot, logger).Services(), nil
	})

	tg, tgErr := telegram.New(cfg.Telegram, logger)
	if tgErr == nil {
		catalog.RegisterProvider(ProviderTelegram, pipeline.Services{Download: tg.Download, Deliver: tg.Deliver})
	}
	wh, whErr := whisper.New(cfg.Transcription, logger)
	if whErr == nil {
		catalog.RegisterProvider(ProviderWhisper, pipeline.Services{Transcribe: wh.Transcribe})
	}

	catalog.RegisterSet(SetProduction, func() (pipeline.Services, error) {
		if err := errors.Join(tgErr, whErr); err != nil {
			return pipeline.Services{}, fmt.Errorf("production services unavailable: %w", err)
		}
		return defaults.Override(pipeline.Services{
			Download:   tg.Download,
			Transcribe: wh.Transcribe,
			Deliver:    tg.Deliver,
		}), nil
	})
	return catalog
}
