package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"overdub/internal/services"
)

// Create inserts a new job record.
func (s *Store) Create(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validate job: %w", err)
	}
	enc, err := encodeJob(job)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO dubbing_jobs (`+jobColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.UID,
		job.Status,
		nullableString(job.Step),
		job.Progress,
		job.MediaType,
		nullableString(job.SourcePath),
		nullableString(job.AudioPath),
		job.Duration,
		job.FileSize,
		nullableString(job.DetectedLanguage),
		enc.transcriptJSON,
		enc.speakersJSON,
		enc.selectionJSON,
		enc.cloneJSON,
		enc.outputJSON,
		job.Cost,
		job.RetryCount,
		job.MaxRetries,
		boolToInt(job.RetriesExhausted),
		nullableString(string(job.RetryStage)),
		nullableTime(job.NextRetryAt),
		nullableString(job.LastError),
		nullableTime(job.LastHeartbeat),
		job.CreatedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.ExpiresAt),
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier. Returns (nil, nil) when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM dubbing_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job without a status guard.
// Use UpdateExpectStatus whenever the caller's decision depended on the
// status it read.
func (s *Store) Update(ctx context.Context, job *Job) error {
	return s.update(ctx, job, "")
}

// UpdateExpectStatus persists changes only if the stored status still equals
// expected; otherwise ErrConflict is returned and nothing changes.
func (s *Store) UpdateExpectStatus(ctx context.Context, job *Job, expected Status) error {
	if expected == "" {
		return errors.New("expected status must not be empty")
	}
	return s.update(ctx, job, expected)
}

func (s *Store) update(ctx context.Context, job *Job, expected Status) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if err := job.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "", "validate job", err.Error(), nil)
	}
	enc, err := encodeJob(job)
	if err != nil {
		return err
	}

	job.UpdatedAt = time.Now().UTC()
	query := `UPDATE dubbing_jobs
         SET status = ?, step = ?, progress = ?, media_type = ?, source_path = ?,
             audio_path = ?, duration = ?, file_size = ?, detected_language = ?,
             transcript_json = ?, speakers_json = ?, selection_json = ?,
             clone_json = ?, output_json = ?, cost = ?, retry_count = ?,
             max_retries = ?, retries_exhausted = ?, retry_stage = ?,
             next_retry_at = ?, last_error = ?, last_heartbeat = ?,
             updated_at = ?, expires_at = ?
         WHERE id = ?`
	args := []any{
		job.Status,
		nullableString(job.Step),
		job.Progress,
		job.MediaType,
		nullableString(job.SourcePath),
		nullableString(job.AudioPath),
		job.Duration,
		job.FileSize,
		nullableString(job.DetectedLanguage),
		enc.transcriptJSON,
		enc.speakersJSON,
		enc.selectionJSON,
		enc.cloneJSON,
		enc.outputJSON,
		job.Cost,
		job.RetryCount,
		job.MaxRetries,
		boolToInt(job.RetriesExhausted),
		nullableString(string(job.RetryStage)),
		nullableTime(job.NextRetryAt),
		nullableString(job.LastError),
		nullableTime(job.LastHeartbeat),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.ExpiresAt),
		job.ID,
	}
	if expected != "" {
		query += ` AND status = ?`
		args = append(args, expected)
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if expected != "" {
			return ErrConflict
		}
		return fmt.Errorf("job %s not found", job.ID)
	}
	return nil
}

// Transition moves a job from one status to another with a compare-and-set
// guard, after validating the change against the state machine.
func (s *Store) Transition(ctx context.Context, job *Job, from, to Status) error {
	if err := ValidateTransition(from, to); err != nil {
		return err
	}
	job.Status = to
	return s.UpdateExpectStatus(ctx, job, from)
}

// List returns jobs filtered by status set (or all jobs when none given),
// oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM dubbing_jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
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

// NextForStatuses returns the oldest unclaimed job matching any of the
// provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + jobColumns + ` FROM dubbing_jobs
        WHERE status IN (` + placeholders + `) AND last_heartbeat IS NULL
        ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Claim marks a job as being worked on by setting its heartbeat, guarded so
// only one worker wins when several race for the same job.
func (s *Store) Claim(ctx context.Context, job *Job) (bool, error) {
	if job == nil {
		return false, errors.New("job is nil")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE dubbing_jobs SET last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ? AND last_heartbeat IS NULL`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		job.ID,
		job.Status,
	)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	job.LastHeartbeat = &now
	job.UpdatedAt = now
	return true, nil
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM dubbing_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ExpiredJobs returns jobs whose retention window lapsed before cutoff.
func (s *Store) ExpiredJobs(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM dubbing_jobs
         WHERE expires_at IS NOT NULL AND expires_at < ? ORDER BY created_at`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired jobs: %w", err)
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

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Waiting    int
	Processing int
	Paused     int
	Retrying   int
	Failed     int
	Completed  int
}

// Health aggregates queue counts for status displays.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM dubbing_jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("query health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		switch {
		case status == StatusCompleted:
			summary.Completed += count
		case status == StatusFailed:
			summary.Failed += count
		case status == StatusRetrying:
			summary.Retrying += count
		case status == StatusTranscribingDone:
			summary.Paused += count
		case IsProcessing(status):
			summary.Processing += count
		default:
			summary.Waiting += count
		}
	}
	return summary, rows.Err()
}
