package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UpdateHeartbeat refreshes the liveness marker for a claimed job. It only
// touches rows that are still claimed, so a reclaimed job cannot be revived
// by a stale worker.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE dubbing_jobs SET last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND last_heartbeat IS NOT NULL`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// ReleaseClaim clears the heartbeat so the job becomes claimable again.
func (s *Store) ReleaseClaim(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE dubbing_jobs SET last_heartbeat = NULL, updated_at = ? WHERE id = ?`,
		now, id,
	); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// ReclaimStale clears heartbeats older than the timeout so that orphaned jobs
// return to the claimable pool. The status is left untouched; the stage that
// was interrupted simply runs again.
func (s *Store) ReclaimStale(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-timeout).Format(time.RFC3339Nano)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE dubbing_jobs SET last_heartbeat = NULL, updated_at = ?
         WHERE last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		now, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// DueRetries returns retrying jobs whose backoff has elapsed.
func (s *Store) DueRetries(ctx context.Context, now time.Time) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM dubbing_jobs
         WHERE status = ? AND last_heartbeat IS NULL
           AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY created_at`,
		StatusRetrying,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query due retries: %w", err)
	}
	defer rows.Close()

	var items []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, job)
	}
	return items, rows.Err()
}

// MarkRetrying parks a failed stage for a later attempt. The stage to re-enter
// is recorded so the retry controller knows where to resume.
func (s *Store) MarkRetrying(ctx context.Context, job *Job, stage Status, retryAt time.Time) error {
	if job == nil {
		return errors.New("job is nil")
	}
	from := job.Status
	job.Status = StatusRetrying
	job.RetryStage = stage
	job.NextRetryAt = &retryAt
	job.RetryCount++
	job.LastHeartbeat = nil
	return s.UpdateExpectStatus(ctx, job, from)
}

// ResumeRetry moves a retrying job back into its recorded stage once the
// backoff window has passed.
func (s *Store) ResumeRetry(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.Status != StatusRetrying {
		return fmt.Errorf("job %s is %s, not retrying", job.ID, job.Status)
	}
	if job.RetryStage == "" {
		return fmt.Errorf("job %s has no retry stage recorded", job.ID)
	}
	stage := job.RetryStage
	job.Status = stage
	job.RetryStage = ""
	job.NextRetryAt = nil
	return s.UpdateExpectStatus(ctx, job, StatusRetrying)
}

// RestartFailed is the user-facing retry: it puts a failed job back into the
// stage where it broke, resetting the attempt counter. Jobs that exhausted
// their retries are eligible; terminal completion is not.
func (s *Store) RestartFailed(ctx context.Context, id string) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", id)
	}
	if job.Status != StatusFailed {
		return nil, fmt.Errorf("job %s is %s, only failed jobs can be restarted", id, job.Status)
	}
	stage := job.RetryStage
	if stage == "" {
		stage = StatusUploading
	}
	job.Status = stage
	job.RetryCount = 0
	job.RetriesExhausted = false
	job.RetryStage = ""
	job.NextRetryAt = nil
	job.LastError = ""
	job.LastHeartbeat = nil
	job.ResetProgress("Restarting")
	if err := s.UpdateExpectStatus(ctx, job, StatusFailed); err != nil {
		return nil, err
	}
	return job, nil
}
