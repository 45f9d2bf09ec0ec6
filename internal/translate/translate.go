package translate

import (
	"context"
	"log/slog"
	"strings"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/selection"
	"overdub/internal/services"
	"overdub/internal/services/translator"
	"overdub/internal/stage"
)

// Service is the translation contract the stage depends on.
type Service interface {
	Translate(ctx context.Context, segments []jobs.TranscriptSegment, sourceLanguage, targetLanguage string) ([]jobs.TranscriptSegment, error)
}

// Translator populates translatedText on the selected segments.
type Translator struct {
	cfg     *config.Config
	store   *jobs.Store
	logger  *slog.Logger
	service Service
}

// New constructs the translate stage handler using default dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Translator, error) {
	client, err := translator.New(cfg.Services.Translator)
	if err != nil {
		return nil, err
	}
	return NewWithDependencies(cfg, store, logger, client), nil
}

// NewWithDependencies allows injecting the service client (used in tests).
func NewWithDependencies(cfg *config.Config, store *jobs.Store, logger *slog.Logger, service Service) *Translator {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "translate"))
	}
	return &Translator{cfg: cfg, store: store, logger: stageLogger, service: service}
}

func (t *Translator) Prepare(ctx context.Context, job *jobs.Job) error {
	job.SetStep("Preparing translation", 0)
	job.LastError = ""
	if job.Selection == nil || strings.TrimSpace(job.Selection.TargetLanguage) == "" {
		return services.Wrap(services.ErrValidation, "translating", "validate inputs",
			"selection has not been finalized", nil)
	}
	if len(job.Transcript) == 0 {
		return services.Wrap(services.ErrValidation, "translating", "validate inputs",
			"no transcript to translate", nil)
	}
	return nil
}

func (t *Translator) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, t.logger)

	selected := selection.Select(job)
	if len(selected) == 0 {
		return services.Wrap(services.ErrValidation, "translating", "select segments",
			"filters selected no segments", nil)
	}

	job.SetStep("Translating selected segments", 20)
	translated, err := t.service.Translate(ctx, selected, job.DetectedLanguage, job.Selection.TargetLanguage)
	if err != nil {
		return err
	}

	// Merge per segment rather than replacing the transcript: unselected
	// segments keep their original text untouched.
	byStart := make(map[float64]jobs.TranscriptSegment, len(translated))
	for _, seg := range translated {
		byStart[seg.StartTime] = seg
	}
	merged := 0
	for i := range job.Transcript {
		if seg, ok := byStart[job.Transcript[i].StartTime]; ok {
			job.Transcript[i].TranslatedText = seg.TranslatedText
			merged++
		}
	}

	job.SetStep("Translation complete", 100)
	logger.Info("translation complete",
		logging.Int("segments_selected", len(selected)),
		logging.Int("segments_translated", merged),
		logging.String("target_language", job.Selection.TargetLanguage),
	)
	return nil
}

func (t *Translator) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(t.cfg.Services.Translator.BaseURL) == "" {
		return stage.Unhealthy("translate", "translator base URL not configured")
	}
	return stage.Healthy("translate")
}
