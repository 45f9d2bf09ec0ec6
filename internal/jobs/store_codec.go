package jobs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// The store keeps the flat persisted form: stage payloads and repeated
// sub-records go into JSON columns, scalars into their own columns. This
// codec is the only place that mapping lives.

const jobColumns = `id, uid, status, step, progress, media_type, source_path, audio_path,
    duration, file_size, detected_language, transcript_json, speakers_json,
    selection_json, clone_json, output_json, cost, retry_count, max_retries,
    retries_exhausted, retry_stage, next_retry_at, last_error, last_heartbeat,
    created_at, updated_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job              Job
		step             sql.NullString
		sourcePath       sql.NullString
		audioPath        sql.NullString
		detectedLanguage sql.NullString
		transcriptJSON   sql.NullString
		speakersJSON     sql.NullString
		selectionJSON    sql.NullString
		cloneJSON        sql.NullString
		outputJSON       sql.NullString
		retriesExhausted int
		retryStage       sql.NullString
		nextRetryAt      sql.NullString
		lastError        sql.NullString
		lastHeartbeat    sql.NullString
		createdAt        string
		updatedAt        string
		expiresAt        sql.NullString
	)

	if err := row.Scan(
		&job.ID, &job.UID, &job.Status, &step, &job.Progress, &job.MediaType,
		&sourcePath, &audioPath, &job.Duration, &job.FileSize, &detectedLanguage,
		&transcriptJSON, &speakersJSON, &selectionJSON, &cloneJSON, &outputJSON,
		&job.Cost, &job.RetryCount, &job.MaxRetries, &retriesExhausted,
		&retryStage, &nextRetryAt, &lastError, &lastHeartbeat,
		&createdAt, &updatedAt, &expiresAt,
	); err != nil {
		return nil, err
	}

	job.Step = step.String
	job.SourcePath = sourcePath.String
	job.AudioPath = audioPath.String
	job.DetectedLanguage = detectedLanguage.String
	job.RetriesExhausted = retriesExhausted != 0
	job.RetryStage = Status(retryStage.String)
	job.LastError = lastError.String

	if err := decodeJSON(transcriptJSON, &job.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if err := decodeJSON(speakersJSON, &job.Speakers); err != nil {
		return nil, fmt.Errorf("decode speakers: %w", err)
	}
	if err := decodeJSON(selectionJSON, &job.Selection); err != nil {
		return nil, fmt.Errorf("decode selection: %w", err)
	}
	if err := decodeJSON(cloneJSON, &job.Clone); err != nil {
		return nil, fmt.Errorf("decode clone state: %w", err)
	}
	if err := decodeJSON(outputJSON, &job.Output); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}

	var err error
	if job.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if job.NextRetryAt, err = parseNullableTimestamp(nextRetryAt); err != nil {
		return nil, fmt.Errorf("parse next_retry_at: %w", err)
	}
	if job.LastHeartbeat, err = parseNullableTimestamp(lastHeartbeat); err != nil {
		return nil, fmt.Errorf("parse last_heartbeat: %w", err)
	}
	if job.ExpiresAt, err = parseNullableTimestamp(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &job, nil
}

type encodedJob struct {
	transcriptJSON any
	speakersJSON   any
	selectionJSON  any
	cloneJSON      any
	outputJSON     any
}

func encodeJob(job *Job) (encodedJob, error) {
	var enc encodedJob
	var err error
	if enc.transcriptJSON, err = encodeJSON(job.Transcript, len(job.Transcript) > 0); err != nil {
		return enc, fmt.Errorf("encode transcript: %w", err)
	}
	if enc.speakersJSON, err = encodeJSON(job.Speakers, len(job.Speakers) > 0); err != nil {
		return enc, fmt.Errorf("encode speakers: %w", err)
	}
	if enc.selectionJSON, err = encodeJSON(job.Selection, job.Selection != nil); err != nil {
		return enc, fmt.Errorf("encode selection: %w", err)
	}
	if enc.cloneJSON, err = encodeJSON(job.Clone, job.Clone != nil); err != nil {
		return enc, fmt.Errorf("encode clone state: %w", err)
	}
	if enc.outputJSON, err = encodeJSON(job.Output, job.Output != nil); err != nil {
		return enc, fmt.Errorf("encode output: %w", err)
	}
	return enc, nil
}

func decodeJSON(col sql.NullString, target any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), target)
}

func encodeJSON(value any, present bool) (any, error) {
	if !present {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullableTimestamp(col sql.NullString) (*time.Time, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	ts, err := parseTimestamp(col.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
