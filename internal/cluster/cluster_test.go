package cluster

import (
	"context"
	"errors"
	"testing"

	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/services/diarizer"
	"overdub/internal/testsupport"
)

type fakeService struct {
	result diarizer.Result
	err    error
}

func (f *fakeService) Cluster(ctx context.Context, audioPath string, segments []jobs.TranscriptSegment) (diarizer.Result, error) {
	return f.result, f.err
}

func clusterJob(t *testing.T, store *jobs.Store, target string) *jobs.Job {
	t.Helper()
	job := testsupport.SeedJob(t, store, "local", "/uploads/panel.mp4", jobs.MediaVideo)
	job.DetectedLanguage = "en"
	job.Transcript = []jobs.TranscriptSegment{
		{SpeakerID: "s0", Text: "First point.", StartTime: 0, EndTime: 3},
		{SpeakerID: "s0", Text: "Counterpoint.", StartTime: 3, EndTime: 6},
	}
	job.Selection = &jobs.Selection{TargetLanguage: target, TranslateAll: true}
	return job
}

func TestClusterAssignsSpeakers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := clusterJob(t, store, "es")

	service := &fakeService{result: diarizer.Result{
		Speakers: []jobs.SpeakerInfo{
			{ID: "spk_0", VoiceSample: "/staging/spk_0.wav", TotalDuration: 3, SegmentCount: 1},
			{ID: "spk_1", VoiceSample: "/staging/spk_1.wav", TotalDuration: 3, SegmentCount: 1},
		},
		Assignments: []string{"spk_0", "spk_1"},
	}}
	handler := NewWithDependencies(cfg, store, logging.NewNop(), service)

	ctx := context.Background()
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(job.Speakers) != 2 {
		t.Fatalf("expected 2 speakers, got %d", len(job.Speakers))
	}
	if job.Transcript[0].SpeakerID != "spk_0" || job.Transcript[1].SpeakerID != "spk_1" {
		t.Fatalf("assignments not applied: %+v", job.Transcript)
	}
	// Target differs from the detected language, so the handler leaves the
	// status alone and the pipeline advances into translating.
	if job.Status == jobs.StatusCloning {
		t.Fatal("translation must not be skipped for a different target language")
	}
}

func TestClusterSkipsTranslationForSameLanguage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := clusterJob(t, store, "en")

	service := &fakeService{result: diarizer.Result{
		Speakers:    []jobs.SpeakerInfo{{ID: "spk_0", TotalDuration: 6, SegmentCount: 2}},
		Assignments: []string{"spk_0", "spk_0"},
	}}
	handler := NewWithDependencies(cfg, store, logging.NewNop(), service)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if job.Status != jobs.StatusCloning {
		t.Fatalf("expected status cloning, got %s", job.Status)
	}
}

func TestClusterIgnoresMismatchedAssignments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := clusterJob(t, store, "es")

	service := &fakeService{result: diarizer.Result{
		Speakers:    []jobs.SpeakerInfo{{ID: "spk_0"}},
		Assignments: []string{"spk_0"},
	}}
	handler := NewWithDependencies(cfg, store, logging.NewNop(), service)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if job.Transcript[0].SpeakerID != "s0" {
		t.Fatal("short assignment list must not be applied")
	}
}

func TestClusterPrepareRequiresSelection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := clusterJob(t, store, "es")
	job.Selection = nil

	handler := NewWithDependencies(cfg, store, logging.NewNop(), &fakeService{})
	if err := handler.Prepare(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
