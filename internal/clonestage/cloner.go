package clonestage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"overdub/internal/chunking"
	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/selection"
	"overdub/internal/services"
	"overdub/internal/services/voiceclone"
	"overdub/internal/stage"
)

// Service is the voice cloning contract the stage depends on.
type Service interface {
	CloneChunk(ctx context.Context, req voiceclone.ChunkRequest) (string, error)
}

// Ledger is the credit operation the cloning gate needs.
type Ledger interface {
	Confirm(ctx context.Context, jobID string) error
}

// Cloner drives chunked voice cloning for one job.
type Cloner struct {
	cfg     *config.Config
	store   *jobs.Store
	logger  *slog.Logger
	service Service
	ledger  Ledger
}

// New constructs the cloning stage handler using default dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger, ledger Ledger) (*Cloner, error) {
	client, err := voiceclone.New(cfg.Services.VoiceClone)
	if err != nil {
		return nil, err
	}
	return NewWithDependencies(cfg, store, logger, client, ledger), nil
}

// NewWithDependencies allows injecting collaborators (used in tests).
func NewWithDependencies(cfg *config.Config, store *jobs.Store, logger *slog.Logger, service Service, ledger Ledger) *Cloner {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "clone"))
	}
	return &Cloner{cfg: cfg, store: store, logger: stageLogger, service: service, ledger: ledger}
}

// Prepare enforces the cloning entry gate: selection finalized, chunk plan
// computed, and the job's credit reservation converted into a debit. An
// insufficient or missing reservation fails the job outright, no retry.
func (c *Cloner) Prepare(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, c.logger)
	job.SetStep("Preparing voice cloning", 0)
	job.LastError = ""

	if job.Selection == nil || strings.TrimSpace(job.Selection.TargetLanguage) == "" {
		return services.Wrap(services.ErrValidation, "cloning", "validate inputs",
			"selection has not been finalized", nil)
	}
	if job.Cost <= 0 {
		return services.Wrap(services.ErrValidation, "cloning", "validate inputs",
			"job has no computed cost", nil)
	}

	selected := selection.Select(job)
	if len(selected) == 0 {
		return services.Wrap(services.ErrValidation, "cloning", "select segments",
			"filters selected no segments", nil)
	}

	// A resumed job keeps its existing chunk state so completed chunks are
	// not recloned.
	if job.Clone == nil {
		plan, err := chunking.Plan(selected, c.maxSpeakersPerChunk())
		if err != nil {
			return err
		}
		job.Clone = chunking.BuildCloneState(plan, job.Selection.VoiceMapping)
		logger.Info("chunk plan computed", logging.Int("total_chunks", job.Clone.TotalChunks))
	}

	if err := c.ledger.Confirm(ctx, job.ID); err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrInsufficientCredits) {
			return services.Wrap(services.ErrInsufficientCredits, "cloning", "debit credits",
				fmt.Sprintf("cannot debit %d credits", job.Cost), err)
		}
		return services.Wrap(services.ErrTransient, "cloning", "debit credits", "", err)
	}
	return nil
}

func (c *Cloner) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, c.logger)
	if job.Clone == nil || job.Clone.TotalChunks == 0 {
		return services.Wrap(services.ErrValidation, "cloning", "validate plan",
			"no chunk plan present", nil)
	}

	selected := selection.Select(job)
	plan, err := chunking.Plan(selected, c.maxSpeakersPerChunk())
	if err != nil {
		return err
	}
	if len(plan) != job.Clone.TotalChunks {
		return services.Wrap(services.ErrValidation, "cloning", "validate plan",
			fmt.Sprintf("plan drifted: %d chunks planned, %d recorded", len(plan), job.Clone.TotalChunks), nil)
	}

	concurrency := c.cfg.Dubbing.ChunkConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		aborted  bool
		chunkErr error
	)

	for i := range plan {
		chunk := plan[i]
		record := &job.Clone.Chunks[i]
		if record.Status == jobs.ChunkCompleted {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			audioPath, err := c.cloneWithRetry(ctx, job, chunk)

			mu.Lock()
			defer mu.Unlock()
			if aborted {
				return
			}
			if err != nil {
				record.Status = jobs.ChunkFailed
				record.Error = err.Error()
				if chunkErr == nil {
					chunkErr = err
				}
			} else {
				record.Status = jobs.ChunkCompleted
				record.AudioPath = audioPath
				record.Error = ""
				job.Clone.CompletedChunks++
				pct := 10 + (85*job.Clone.CompletedChunks)/job.Clone.TotalChunks
				job.SetStep(fmt.Sprintf("Cloned chunk %d/%d", job.Clone.CompletedChunks, job.Clone.TotalChunks), pct)
			}
			// Persist chunk progress so a crash mid-stage resumes instead of
			// recloning, and discard results for jobs that went away.
			if err := c.store.UpdateExpectStatus(ctx, job, jobs.StatusCloning); err != nil {
				if errors.Is(err, jobs.ErrConflict) {
					aborted = true
					if chunkErr == nil {
						chunkErr = services.Wrap(services.ErrConflict, "cloning", "persist chunk",
							"job state changed while cloning", err)
					}
					return
				}
				logger.Warn("failed to persist chunk progress", logging.Error(err))
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if chunkErr != nil {
		return chunkErr
	}
	if job.Clone.CompletedChunks != job.Clone.TotalChunks {
		return services.Wrap(services.ErrTransient, "cloning", "verify chunks",
			fmt.Sprintf("%d of %d chunks completed", job.Clone.CompletedChunks, job.Clone.TotalChunks), nil)
	}

	job.SetStep("All chunks cloned", 100)
	logger.Info("cloning complete", logging.Int("chunks", job.Clone.TotalChunks))
	return nil
}

func (c *Cloner) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(c.cfg.Services.VoiceClone.BaseURL) == "" {
		return stage.Unhealthy("clone", "voice clone base URL not configured")
	}
	return stage.Healthy("clone")
}

func (c *Cloner) maxSpeakersPerChunk() int {
	if c.cfg.Dubbing.MaxSpeakersPerChunk > 0 {
		return c.cfg.Dubbing.MaxSpeakersPerChunk
	}
	return chunking.DefaultMaxSpeakersPerChunk
}

// cloneWithRetry makes the per-chunk service call with its own bounded retry,
// independent of the job-level retry counter.
func (c *Cloner) cloneWithRetry(ctx context.Context, job *jobs.Job, chunk chunking.Chunk) (string, error) {
	req := voiceclone.ChunkRequest{
		ChunkID:      chunk.ID,
		Segments:     chunk.Segments,
		VoiceSamples: voiceSamples(job, chunk.Speakers),
		VoiceMapping: chunkMapping(job, chunk.Speakers),
	}

	maxAttempts := c.cfg.Dubbing.ChunkMaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		audioPath, err := c.service.CloneChunk(ctx, req)
		if err == nil {
			return audioPath, nil
		}
		lastErr = err
		if !services.Retryable(err) {
			break
		}
	}
	return "", lastErr
}

func voiceSamples(job *jobs.Job, speakers []string) map[string]string {
	samples := make(map[string]string)
	for _, id := range speakers {
		if sp, ok := job.SpeakerByID(id); ok && sp.VoiceSample != "" {
			samples[id] = sp.VoiceSample
		}
	}
	if len(samples) == 0 {
		return nil
	}
	return samples
}

func chunkMapping(job *jobs.Job, speakers []string) map[string]jobs.VoiceChoice {
	if job.Selection == nil || len(job.Selection.VoiceMapping) == 0 {
		return nil
	}
	mapping := make(map[string]jobs.VoiceChoice)
	for _, id := range speakers {
		if choice, ok := job.Selection.VoiceMapping[id]; ok {
			mapping[id] = choice
		}
	}
	if len(mapping) == 0 {
		return nil
	}
	return mapping
}
