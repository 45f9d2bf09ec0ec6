package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/media/ffprobe"
	"overdub/internal/services"
	"overdub/internal/stage"
)

// Prober inspects a media file. Satisfied by ffprobe.Inspect.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Ingester stages uploaded media and records its probed properties.
type Ingester struct {
	cfg    *config.Config
	store  *jobs.Store
	logger *slog.Logger
	probe  Prober
}

// New constructs the ingest stage handler using default dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) *Ingester {
	return NewWithDependencies(cfg, store, logger, ffprobe.Inspect)
}

// NewWithDependencies allows injecting the prober (used in tests).
func NewWithDependencies(cfg *config.Config, store *jobs.Store, logger *slog.Logger, probe Prober) *Ingester {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "ingest"))
	}
	return &Ingester{cfg: cfg, store: store, logger: stageLogger, probe: probe}
}

func (i *Ingester) Prepare(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, i.logger)
	job.SetStep("Staging upload", 0)
	job.LastError = ""
	if strings.TrimSpace(job.SourcePath) == "" {
		return services.Wrap(services.ErrValidation, "uploading", "validate inputs",
			"job has no source file", nil)
	}
	logger.Info("starting ingest", logging.String("source_file", job.SourcePath))
	return nil
}

func (i *Ingester) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, i.logger)

	info, err := os.Stat(job.SourcePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "uploading", "stat source",
			fmt.Sprintf("source file %s is not readable", job.SourcePath), err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "uploading", "stat source",
			fmt.Sprintf("%s is a directory", job.SourcePath), nil)
	}

	jobDir := filepath.Join(i.cfg.Paths.StagingDir, job.ID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "uploading", "create staging directory", "", err)
	}
	staged := filepath.Join(jobDir, "source"+filepath.Ext(job.SourcePath))
	job.SetStep("Copying into staging", 30)
	if err := copyFile(job.SourcePath, staged); err != nil {
		return services.Wrap(services.ErrTransient, "uploading", "stage source file", "", err)
	}

	job.SetStep("Probing media", 60)
	result, err := i.probe(ctx, i.cfg.Tools.FFprobeBinary, staged)
	if err != nil {
		return services.Wrap(services.ErrTransient, "uploading", "probe media", "", err)
	}
	if !result.HasAudio() {
		return services.Wrap(services.ErrValidation, "uploading", "probe media",
			"source has no audio stream", nil)
	}
	duration := result.DurationSeconds()
	if duration <= 0 {
		return services.Wrap(services.ErrValidation, "uploading", "probe media",
			"source has no measurable duration", nil)
	}

	job.SourcePath = staged
	job.Duration = duration
	job.FileSize = info.Size()
	if result.HasVideo() {
		job.MediaType = jobs.MediaVideo
	} else {
		job.MediaType = jobs.MediaAudio
	}
	if i.cfg.Dubbing.RetentionHours > 0 {
		expiry := time.Now().UTC().Add(time.Duration(i.cfg.Dubbing.RetentionHours) * time.Hour)
		job.ExpiresAt = &expiry
	}
	job.SetStep("Upload staged", 100)

	logger.Info("ingest complete",
		logging.String("staged_file", staged),
		logging.Float64("duration_seconds", duration),
		logging.String("media_type", string(job.MediaType)),
	)
	return nil
}

func (i *Ingester) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(i.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy("ingest", "staging directory not configured")
	}
	if err := os.MkdirAll(i.cfg.Paths.StagingDir, 0o755); err != nil {
		return stage.Unhealthy("ingest", fmt.Sprintf("staging directory unavailable: %v", err))
	}
	return stage.Healthy("ingest")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
