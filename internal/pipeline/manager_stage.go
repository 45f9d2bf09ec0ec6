package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/stage"
)

func (m *Manager) processJob(ctx context.Context, runLogger *slog.Logger, job *jobs.Job) error {
	stg, ok := m.stageForStatus(job.Status)
	if !ok {
		runLogger.Warn("no stage configured for status", logging.String("status", string(job.Status)))
		m.waitForJobOrShutdown(ctx)
		return nil
	}

	claimed, err := m.store.Claim(ctx, job)
	if err != nil {
		m.setLastError(err)
		runLogger.Error("failed to claim job", logging.Error(err))
		return err
	}
	if !claimed {
		// Another worker took it between the poll and the claim.
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(services.WithStage(services.WithJobID(ctx, job.ID), stg.name), requestID)
	stageLogger := logging.WithContext(stageCtx, runLogger)

	return m.executeStage(stageCtx, stageLogger, stg, job)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, job *jobs.Job) error {
	claimStatus := job.Status
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("source_file", job.SourceName()),
	)

	if err := stg.handler.Prepare(ctx, job); err != nil {
		m.handleStageFailure(ctx, stg.name, claimStatus, job, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.UpdateExpectStatus(ctx, job, claimStatus); err != nil {
		return m.handlePersistError(ctx, stageLogger, stg, claimStatus, job, fmt.Errorf("persist stage preparation: %w", err))
	}

	execErr := m.executeWithHeartbeat(ctx, stg.handler, job)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			// Release the claim now so a restarted daemon picks the job up
			// without waiting out the heartbeat timeout.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.store.ReleaseClaim(releaseCtx, job.ID); err != nil {
				stageLogger.Warn("failed to release claim on shutdown", logging.Error(err))
			}
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, claimStatus, job, execErr)
		m.setLastError(execErr)
		return execErr
	}

	// Handlers may steer the job themselves (clustering skips translation by
	// setting cloning); otherwise advance to the stage's done status.
	if job.Status == claimStatus {
		job.Status = stg.doneStatus
	}
	job.LastHeartbeat = nil
	if job.Status == jobs.StatusCompleted && job.Progress < 100 {
		job.Progress = 100
	}
	if err := m.store.UpdateExpectStatus(ctx, job, claimStatus); err != nil {
		return m.handlePersistError(ctx, stageLogger, stg, claimStatus, job, fmt.Errorf("persist stage result: %w", err))
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(job.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastJob(job)
	m.notifyStageOutcome(ctx, stageLogger, job)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *jobs.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := handler.Execute(ctx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// handlePersistError covers the job vanishing mid-stage: a conflicting update
// means the row was deleted or moved by the user, so the stage result is
// discarded rather than retried. A validation rejection means the stage
// produced a payload the store refuses, which can never succeed on a
// re-claim, so the job is failed terminally from its stored snapshot.
func (m *Manager) handlePersistError(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, claimStatus jobs.Status, job *jobs.Job, err error) error {
	if errors.Is(err, services.ErrConflict) {
		stageLogger.Warn("job changed underneath stage; dropping result",
			logging.String(logging.FieldEventType, "stage_conflict"),
		)
		return nil
	}
	if errors.Is(err, context.Canceled) {
		stageLogger.Debug("shutdown during stage persist")
		return context.Canceled
	}
	if errors.Is(err, services.ErrValidation) {
		stored, getErr := m.store.GetByID(ctx, job.ID)
		if getErr != nil {
			stageLogger.Error("failed to reload job after invalid stage result", logging.Error(getErr))
			m.setLastError(getErr)
			return err
		}
		if stored == nil {
			stageLogger.Warn("job deleted before invalid stage result could be recorded")
			return nil
		}
		// The in-memory copy cannot be persisted; fail the last stored state.
		m.handleStageFailure(ctx, stg.name, claimStatus, stored, err)
		m.setLastError(err)
		return err
	}
	stageLogger.Error("failed to persist stage state", logging.Error(err))
	m.setLastError(err)
	return err
}

func (m *Manager) notifyStageOutcome(ctx context.Context, stageLogger *slog.Logger, job *jobs.Job) {
	if m.notifier == nil {
		return
	}
	var err error
	switch job.Status {
	case jobs.StatusTranscribingDone:
		err = m.notifier.NotifyTranscriptReady(ctx, job)
	case jobs.StatusCompleted:
		err = m.notifier.NotifyJobCompleted(ctx, job)
	default:
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("shutdown before notification was sent")
		} else {
			stageLogger.Debug("notification failed", logging.Error(err))
		}
	}
}
