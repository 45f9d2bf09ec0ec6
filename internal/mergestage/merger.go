package mergestage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/services/mediamerge"
	"overdub/internal/stage"
)

// Service is the media merge contract the stage depends on.
type Service interface {
	Merge(ctx context.Context, sourcePath string, chunkPaths []string, isVideo bool) (mediamerge.Result, error)
}

// Merger produces the final dubbed media.
type Merger struct {
	cfg     *config.Config
	store   *jobs.Store
	logger  *slog.Logger
	service Service
}

// New constructs the merge stage handler using default dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Merger, error) {
	client, err := mediamerge.New(cfg.Services.MediaMerge)
	if err != nil {
		return nil, err
	}
	return NewWithDependencies(cfg, store, logger, client), nil
}

// NewWithDependencies allows injecting the service client (used in tests).
func NewWithDependencies(cfg *config.Config, store *jobs.Store, logger *slog.Logger, service Service) *Merger {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "merge"))
	}
	return &Merger{cfg: cfg, store: store, logger: stageLogger, service: service}
}

func (m *Merger) Prepare(ctx context.Context, job *jobs.Job) error {
	job.SetStep("Preparing merge", 0)
	job.LastError = ""
	if job.Clone == nil || job.Clone.TotalChunks == 0 {
		return services.Wrap(services.ErrValidation, "merging", "validate inputs",
			"no cloned chunks to merge", nil)
	}
	if job.Clone.CompletedChunks != job.Clone.TotalChunks {
		return services.Wrap(services.ErrValidation, "merging", "validate inputs",
			fmt.Sprintf("%d of %d chunks completed", job.Clone.CompletedChunks, job.Clone.TotalChunks), nil)
	}
	return nil
}

func (m *Merger) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, m.logger)

	// Planned order, regardless of which chunk finished first.
	chunks := append([]jobs.ClonedChunk(nil), job.Clone.Chunks...)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkID < chunks[j].ChunkID })

	paths := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Status != jobs.ChunkCompleted || chunk.AudioPath == "" {
			return services.Wrap(services.ErrValidation, "merging", "collect chunks",
				fmt.Sprintf("chunk %d has no completed audio", chunk.ChunkID), nil)
		}
		paths = append(paths, chunk.AudioPath)
	}

	job.SetStep("Merging cloned audio", 30)
	result, err := m.service.Merge(ctx, job.SourcePath, paths, job.IsVideo())
	if err != nil {
		return err
	}

	job.Output = &jobs.Output{
		ClonedAudioPath: result.ClonedAudioPath,
		FinalMediaPath:  result.FinalMediaPath,
	}
	job.SetStep("Dub complete", 100)
	logger.Info("merge complete", logging.String("final_media", result.FinalMediaPath))
	return nil
}

func (m *Merger) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(m.cfg.Services.MediaMerge.BaseURL) == "" {
		return stage.Unhealthy("merge", "media merge base URL not configured")
	}
	return stage.Healthy("merge")
}
