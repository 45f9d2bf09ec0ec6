package cluster

import (
	"context"
	"log/slog"
	"strings"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/services/diarizer"
	"overdub/internal/stage"
)

// Service is the diarization contract the stage depends on.
type Service interface {
	Cluster(ctx context.Context, audioPath string, segments []jobs.TranscriptSegment) (diarizer.Result, error)
}

// Clusterer assigns speakers to transcript segments.
type Clusterer struct {
	cfg     *config.Config
	store   *jobs.Store
	logger  *slog.Logger
	service Service
}

// New constructs the cluster stage handler using default dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Clusterer, error) {
	client, err := diarizer.New(cfg.Services.Diarizer)
	if err != nil {
		return nil, err
	}
	return NewWithDependencies(cfg, store, logger, client), nil
}

// NewWithDependencies allows injecting the service client (used in tests).
func NewWithDependencies(cfg *config.Config, store *jobs.Store, logger *slog.Logger, service Service) *Clusterer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "cluster"))
	}
	return &Clusterer{cfg: cfg, store: store, logger: stageLogger, service: service}
}

func (c *Clusterer) Prepare(ctx context.Context, job *jobs.Job) error {
	job.SetStep("Preparing speaker clustering", 0)
	job.LastError = ""
	if len(job.Transcript) == 0 {
		return services.Wrap(services.ErrValidation, "clustering", "validate inputs",
			"no transcript to cluster", nil)
	}
	if job.Selection == nil || strings.TrimSpace(job.Selection.TargetLanguage) == "" {
		return services.Wrap(services.ErrValidation, "clustering", "validate inputs",
			"selection has not been finalized", nil)
	}
	return nil
}

func (c *Clusterer) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, c.logger)

	job.SetStep("Clustering speakers", 20)
	result, err := c.service.Cluster(ctx, job.AudioPath, job.Transcript)
	if err != nil {
		return err
	}

	job.Speakers = result.Speakers
	if len(result.Assignments) == len(job.Transcript) {
		for i := range job.Transcript {
			job.Transcript[i].SpeakerID = result.Assignments[i]
		}
	}

	// Translation is skipped entirely when the user asked for the language
	// the audio is already in.
	if !job.NeedsTranslation() {
		job.Status = jobs.StatusCloning
		logger.Info("target matches detected language, skipping translation",
			logging.String("language", job.DetectedLanguage))
	}

	job.SetStep("Speakers clustered", 100)
	logger.Info("clustering complete", logging.Int("speakers", len(result.Speakers)))
	return nil
}

func (c *Clusterer) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(c.cfg.Services.Diarizer.BaseURL) == "" {
		return stage.Unhealthy("cluster", "diarizer base URL not configured")
	}
	return stage.Healthy("cluster")
}
