package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"overdub/internal/jobs"
	"overdub/internal/services"
	"overdub/internal/testsupport"
)

func TestOpenAppliesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := jobs.New("user-1", "/tmp/sample.mp4", jobs.MediaVideo, 3)
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.UID != "user-1" || fetched.MediaType != jobs.MediaVideo {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
	if fetched.Status != jobs.StatusUploading {
		t.Fatalf("expected uploading, got %s", fetched.Status)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for unknown id, got %#v", job)
	}
}

func TestRoundTripPayloads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "user-1", "/tmp/sample.wav", jobs.MediaAudio)
	job.Status = jobs.StatusTranscribingDone
	job.DetectedLanguage = "en"
	job.Duration = 125.5
	job.Transcript = []jobs.TranscriptSegment{
		{SpeakerID: "spk_0", Text: "hello there", StartTime: 0, EndTime: 2.5, Confidence: 0.97},
		{SpeakerID: "spk_1", Text: "hi", StartTime: 2.5, EndTime: 3.0, Confidence: 0.92},
	}
	job.Speakers = []jobs.SpeakerInfo{
		{ID: "spk_0", TotalDuration: 2.5, SegmentCount: 1},
		{ID: "spk_1", TotalDuration: 0.5, SegmentCount: 1},
	}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(fetched.Transcript) != 2 || fetched.Transcript[0].Text != "hello there" {
		t.Fatalf("unexpected transcript: %#v", fetched.Transcript)
	}
	if len(fetched.Speakers) != 2 || fetched.Speakers[1].ID != "spk_1" {
		t.Fatalf("unexpected speakers: %#v", fetched.Speakers)
	}
	if fetched.Duration != 125.5 {
		t.Fatalf("expected duration 125.5, got %f", fetched.Duration)
	}
	if fetched.Selection != nil || fetched.Clone != nil || fetched.Output != nil {
		t.Fatalf("expected empty payloads, got %#v", fetched)
	}
}

func TestUpdateExpectStatusConflict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "user-1", "/tmp/a.wav", jobs.MediaAudio)

	job.Status = jobs.StatusExtracting
	if err := store.UpdateExpectStatus(ctx, job, jobs.StatusUploading); err != nil {
		t.Fatalf("first CAS update failed: %v", err)
	}

	// A second writer that still believes the job is uploading must lose.
	stale := *job
	stale.Status = jobs.StatusExtracting
	err := store.UpdateExpectStatus(ctx, &stale, jobs.StatusUploading)
	if !errors.Is(err, jobs.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// Callers classify store conflicts with the shared sentinel.
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict to match services.ErrConflict, got %v", err)
	}
}

func TestUpdateRejectsInvalidPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "user-1", "/tmp/a.wav", jobs.MediaAudio)

	job.Speakers = []jobs.SpeakerInfo{{ID: "spk_0"}}
	job.Selection = &jobs.Selection{
		TargetLanguage: "es",
		Filters:        []jobs.SegmentFilter{{Type: jobs.FilterSpeaker, SpeakerID: "ghost"}},
	}
	job.Status = jobs.StatusClustering
	err := store.Update(ctx, job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClaimIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "user-1", "/tmp/a.wav", jobs.MediaAudio)

	ok, err := store.Claim(ctx, job)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first claim to succeed")
	}
	if job.LastHeartbeat == nil {
		t.Fatal("expected heartbeat set on claimed job")
	}

	second, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	ok, err = store.Claim(ctx, second)
	if err != nil {
		t.Fatalf("second Claim failed: %v", err)
	}
	if ok {
		t.Fatal("expected second claim to lose")
	}
}

func TestNextForStatusesSkipsClaimed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.SeedJob(t, store, "user-1", "/tmp/a.wav", jobs.MediaAudio)
	second := testsupport.SeedJob(t, store, "user-2", "/tmp/b.wav", jobs.MediaAudio)

	if ok, err := store.Claim(ctx, first); err != nil || !ok {
		t.Fatalf("claim first: ok=%v err=%v", ok, err)
	}

	next, err := store.NextForStatuses(ctx, jobs.StatusUploading)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected second job, got %#v", next)
	}
}

func TestListSupportsStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.SeedJob(t, store, "user-1", "/tmp/a.wav", jobs.MediaAudio)
	b := testsupport.SeedJob(t, store, "user-1", "/tmp/b.wav", jobs.MediaAudio)
	b.Status = jobs.StatusExtracting
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	c := testsupport.SeedJob(t, store, "user-2", "/tmp/c.wav", jobs.MediaAudio)
	c.SetFailed("boom")
	if err := store.Update(ctx, c); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}
	if all[0].ID != a.ID || all[1].ID != b.ID || all[2].ID != c.ID {
		t.Fatalf("expected creation order, got %s,%s,%s", all[0].ID, all[1].ID, all[2].ID)
	}

	filtered, err := store.List(ctx, jobs.StatusExtracting, jobs.StatusFailed)
	if err != nil {
		t.Fatalf("filtered List failed: %v", err)
	}
	if len(filtered) != 2 || filtered[0].ID != b.ID || filtered[1].ID != c.ID {
		t.Fatalf("unexpected filtered result: %d jobs", len(filtered))
	}
}

func TestReclaimStale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.SeedJob(t, store, "user-1", "/tmp/a.wav", jobs.MediaAudio)
	past := time.Now().Add(-2 * time.Hour).UTC()
	stale.Status = jobs.StatusTranscribing
	stale.LastHeartbeat = &past
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update stale: %v", err)
	}

	fresh := testsupport.SeedJob(t, store, "user-2", "/tmp/b.wav", jobs.MediaAudio)
	if ok, err := store.Claim(ctx, fresh); err != nil || !ok {
		t.Fatalf("claim fresh: ok=%v err=%v", ok, err)
	}

	count, err := store.ReclaimStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job reclaimed, got %d", count)
	}

	reclaimed, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID stale: %v", err)
	}
	if reclaimed.Status != jobs.StatusTranscribing {
		t.Fatalf("expected status untouched, got %s", reclaimed.Status)
	}
	if reclaimed.LastHeartbeat != nil {
		t.Fatalf("expected heartbeat cleared, got %v", reclaimed.LastHeartbeat)
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID fresh: %v", err)
	}
	if untouched.LastHeartbeat == nil {
		t.Fatal("expected fresh heartbeat preserved")
	}
}

func TestUpdateHeartbeatRequiresClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "user-1", "/tmp/a.wav", jobs.MediaAudio)

	if err := store.UpdateHeartbeat(ctx, job.ID); err != jobs.ErrConflict {
		t.Fatalf("expected ErrConflict on unclaimed job, got %v", err)
	}

	if ok, err := store.Claim(ctx, job); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if err := store.UpdateHeartbeat(ctx, job.ID); err != nil {
		t.Fatalf("UpdateHeartbeat failed: %v", err)
	}
}

func TestRetryLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "user-1", "/tmp/a.wav", jobs.MediaAudio)
	job.Status = jobs.StatusTranscribing
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	future := time.Now().Add(time.Hour).UTC()
	if err := store.MarkRetrying(ctx, job, jobs.StatusTranscribing, future); err != nil {
		t.Fatalf("MarkRetrying: %v", err)
	}
	if job.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", job.RetryCount)
	}

	due, err := store.DueRetries(ctx, time.Now())
	if err != nil {
		t.Fatalf("DueRetries: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no due retries before backoff lapses, got %d", len(due))
	}

	due, err = store.DueRetries(ctx, future.Add(time.Minute))
	if err != nil {
		t.Fatalf("DueRetries: %v", err)
	}
	if len(due) != 1 || due[0].ID != job.ID {
		t.Fatalf("expected the parked job, got %d results", len(due))
	}

	if err := store.ResumeRetry(ctx, due[0]); err != nil {
		t.Fatalf("ResumeRetry: %v", err)
	}
	resumed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if resumed.Status != jobs.StatusTranscribing {
		t.Fatalf("expected transcribing after resume, got %s", resumed.Status)
	}
	if resumed.RetryStage != "" || resumed.NextRetryAt != nil {
		t.Fatalf("expected retry bookkeeping cleared, got stage=%q at=%v", resumed.RetryStage, resumed.NextRetryAt)
	}
}

func TestRestartFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "user-1", "/tmp/a.wav", jobs.MediaAudio)
	job.Status = jobs.StatusFailed
	job.RetryStage = jobs.StatusTranscribing
	job.RetriesExhausted = true
	job.RetryCount = 3
	job.LastError = "transcriber unreachable"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	restarted, err := store.RestartFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("RestartFailed: %v", err)
	}
	if restarted.Status != jobs.StatusTranscribing {
		t.Fatalf("expected job back in transcribing, got %s", restarted.Status)
	}
	if restarted.RetryCount != 0 || restarted.RetriesExhausted {
		t.Fatalf("expected counters reset, got count=%d exhausted=%v", restarted.RetryCount, restarted.RetriesExhausted)
	}
	if restarted.LastError != "" {
		t.Fatalf("expected error cleared, got %q", restarted.LastError)
	}

	if _, err := store.RestartFailed(ctx, job.ID); err == nil {
		t.Fatal("expected restart of non-failed job to error")
	}
}

func TestExpiredJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	now := time.Now().UTC()
	for i, offset := range []time.Duration{-time.Hour, time.Hour} {
		job := testsupport.SeedJob(t, store, "user-1", fmt.Sprintf("/tmp/%d.wav", i), jobs.MediaAudio)
		expiry := now.Add(offset)
		job.ExpiresAt = &expiry
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	expired, err := store.ExpiredJobs(ctx, now)
	if err != nil {
		t.Fatalf("ExpiredJobs: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired job, got %d", len(expired))
	}
}

func TestRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "user-1", "/tmp/a.wav", jobs.MediaAudio)

	removed, err := store.Remove(ctx, job.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatal("expected job removed")
	}
	removed, err = store.Remove(ctx, job.ID)
	if err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if removed {
		t.Fatal("expected second remove to be a no-op")
	}
}

func TestHealthAggregation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []jobs.Status{
		jobs.StatusUploading,
		jobs.StatusTranscribing,
		jobs.StatusTranscribingDone,
		jobs.StatusFailed,
	}
	for i, status := range statuses {
		job := testsupport.SeedJob(t, store, "user-1", fmt.Sprintf("/tmp/%d.wav", i), jobs.MediaAudio)
		if status == jobs.StatusUploading {
			continue
		}
		job.Status = status
		if status == jobs.StatusFailed {
			job.LastError = "boom"
		}
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if summary.Total != 4 {
		t.Fatalf("expected 4 jobs, got %d", summary.Total)
	}
	if summary.Processing != 2 || summary.Paused != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}
