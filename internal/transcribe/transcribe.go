package transcribe

import (
	"context"
	"log/slog"
	"strings"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/services/transcriber"
	"overdub/internal/stage"
)

// Service is the speech-to-text contract the stage depends on.
type Service interface {
	Transcribe(ctx context.Context, audioPath, languageHint string) (transcriber.Result, error)
}

// Transcriber drives the transcription service for one job.
type Transcriber struct {
	cfg     *config.Config
	store   *jobs.Store
	logger  *slog.Logger
	service Service
}

// New constructs the transcribe stage handler using default dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Transcriber, error) {
	client, err := transcriber.New(cfg.Services.Transcriber)
	if err != nil {
		return nil, err
	}
	return NewWithDependencies(cfg, store, logger, client), nil
}

// NewWithDependencies allows injecting the service client (used in tests).
func NewWithDependencies(cfg *config.Config, store *jobs.Store, logger *slog.Logger, service Service) *Transcriber {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "transcribe"))
	}
	return &Transcriber{cfg: cfg, store: store, logger: stageLogger, service: service}
}

func (t *Transcriber) Prepare(ctx context.Context, job *jobs.Job) error {
	job.SetStep("Preparing transcription", 0)
	job.LastError = ""
	if strings.TrimSpace(job.AudioPath) == "" {
		return services.Wrap(services.ErrValidation, "transcribing", "validate inputs",
			"no extracted audio to transcribe", nil)
	}
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, t.logger)

	job.SetStep("Transcribing audio", 20)
	// The source language is unknown until the service detects it.
	result, err := t.service.Transcribe(ctx, job.AudioPath, "")
	if err != nil {
		return err
	}

	job.Transcript = result.Segments
	job.DetectedLanguage = result.DetectedLanguage
	job.SetStep("Transcript ready for review", 100)
	logger.Info("transcription complete",
		logging.Int("segments", len(result.Segments)),
		logging.String("detected_language", result.DetectedLanguage),
	)
	return nil
}

func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(t.cfg.Services.Transcriber.BaseURL) == "" {
		return stage.Unhealthy("transcribe", "transcriber base URL not configured")
	}
	return stage.Healthy("transcribe")
}
