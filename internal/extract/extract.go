package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/stage"
)

// Runner executes the extraction command. Satisfied by runFFmpeg; tests
// substitute a fake that writes the output file directly.
type Runner func(ctx context.Context, binary, sourcePath, outputPath string) error

// Extractor produces the transcription-ready audio track.
type Extractor struct {
	cfg    *config.Config
	store  *jobs.Store
	logger *slog.Logger
	run    Runner
}

// New constructs the extract stage handler using default dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) *Extractor {
	return NewWithDependencies(cfg, store, logger, runFFmpeg)
}

// NewWithDependencies allows injecting the command runner (used in tests).
func NewWithDependencies(cfg *config.Config, store *jobs.Store, logger *slog.Logger, run Runner) *Extractor {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "extract"))
	}
	return &Extractor{cfg: cfg, store: store, logger: stageLogger, run: run}
}

func (e *Extractor) Prepare(ctx context.Context, job *jobs.Job) error {
	job.SetStep("Preparing audio extraction", 0)
	job.LastError = ""
	if strings.TrimSpace(job.SourcePath) == "" {
		return services.Wrap(services.ErrValidation, "extracting", "validate inputs",
			"no staged source to extract from", nil)
	}
	return nil
}

func (e *Extractor) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, e.logger)

	if _, err := os.Stat(job.SourcePath); err != nil {
		return services.Wrap(services.ErrValidation, "extracting", "stat source",
			fmt.Sprintf("staged source %s missing", job.SourcePath), err)
	}

	outputPath := filepath.Join(filepath.Dir(job.SourcePath), "audio.wav")
	job.SetStep("Extracting audio", 20)
	logger.Info("extracting audio", logging.String("output_file", outputPath))

	if err := e.run(ctx, e.cfg.Tools.FFmpegBinary, job.SourcePath, outputPath); err != nil {
		return services.Wrap(services.ErrTransient, "extracting", "run ffmpeg", "", err)
	}
	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrTransient, "extracting", "verify output",
			"ffmpeg produced no audio", err)
	}

	job.AudioPath = outputPath
	job.SetStep("Audio extracted", 100)
	logger.Info("extraction complete", logging.String("audio_file", outputPath))
	return nil
}

func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	binary := strings.TrimSpace(e.cfg.Tools.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy("extract", fmt.Sprintf("ffmpeg not found: %v", err))
	}
	return stage.Healthy("extract")
}

// runFFmpeg downmixes to mono 16 kHz PCM, the transcription service's
// expected input.
func runFFmpeg(ctx context.Context, binary, sourcePath, outputPath string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary,
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-i", sourcePath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
