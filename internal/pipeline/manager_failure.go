package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, claimStatus jobs.Status, job *jobs.Job, stageErr error) {
	logger := logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldComponent, "pipeline-manager"))

	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" && stageErr != nil {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message == "" {
		message = stageName + " failed"
	}

	retryable := services.Retryable(stageErr)
	if retryable && job.RetryCount < job.MaxRetries {
		m.scheduleRetry(ctx, logger, claimStatus, job, message)
		return
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldAlert, "stage_failure"),
		logging.String("error_kind", string(details.Kind)),
		logging.String("error_message", message),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else if stageErr != nil {
		attrs = append(attrs, logging.Error(stageErr))
	}
	logger.Error("stage failed", logging.Args(attrs...)...)

	// RetryStage survives the failure so a manual restart resumes where the
	// job died instead of starting over.
	job.SetFailed(message)
	job.RetryStage = claimStatus
	job.RetriesExhausted = retryable
	if err := m.store.UpdateExpectStatus(ctx, job, claimStatus); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutdown before failure could be persisted")
		} else if errors.Is(err, services.ErrConflict) {
			logger.Warn("job changed underneath failing stage; failure not recorded")
			return
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	m.setLastJob(job)

	m.releaseReservation(ctx, logger, job.ID)
	if m.notifier != nil {
		if err := m.notifier.NotifyJobFailed(ctx, job, message); err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("failure notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) scheduleRetry(ctx context.Context, logger *slog.Logger, claimStatus jobs.Status, job *jobs.Job, message string) {
	backoff := time.Duration(m.cfg.Dubbing.RetryBackoffSeconds) * time.Second
	if backoff <= 0 {
		backoff = time.Second
	}
	backoff <<= uint(job.RetryCount)
	retryAt := time.Now().UTC().Add(backoff)

	job.LastError = message
	if err := m.store.MarkRetrying(ctx, job, claimStatus, retryAt); err != nil {
		if errors.Is(err, services.ErrConflict) {
			logger.Warn("job changed underneath failing stage; retry not scheduled")
			return
		}
		logger.Error("failed to schedule retry", logging.Error(err))
		m.setLastError(err)
		return
	}
	logger.Warn("stage failed; retry scheduled",
		logging.String(logging.FieldEventType, "stage_retry_scheduled"),
		logging.String("error_message", message),
		logging.Int("retry_count", job.RetryCount),
		logging.Duration("backoff", backoff),
	)
	m.setLastJob(job)
}

// promoteDueRetries moves jobs whose backoff deadline has passed back to the
// stage recorded when they failed.
func (m *Manager) promoteDueRetries(ctx context.Context, logger *slog.Logger) {
	due, err := m.store.DueRetries(ctx, time.Now().UTC())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("failed to list due retries", logging.Error(err))
		}
		return
	}
	for _, job := range due {
		if err := m.store.ResumeRetry(ctx, job); err != nil {
			if errors.Is(err, services.ErrConflict) {
				continue
			}
			logger.Warn("failed to resume retry",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
			)
			continue
		}
		logger.Info("retry due; job resumed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("stage_status", string(job.Status)),
			logging.Int("retry_count", job.RetryCount),
		)
	}
}

func (m *Manager) releaseReservation(ctx context.Context, logger *slog.Logger, jobID string) {
	if m.ledger == nil {
		return
	}
	if err := m.ledger.Release(ctx, jobID); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("failed to release credit reservation", logging.Error(err))
	}
}
