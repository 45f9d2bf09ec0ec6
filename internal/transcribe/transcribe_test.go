package transcribe

import (
	"context"
	"errors"
	"testing"

	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/services/transcriber"
	"overdub/internal/testsupport"
)

type fakeService struct {
	result    transcriber.Result
	err       error
	audioPath string
}

func (f *fakeService) Transcribe(ctx context.Context, audioPath, languageHint string) (transcriber.Result, error) {
	f.audioPath = audioPath
	return f.result, f.err
}

func TestTranscribeRecordsTranscriptAndLanguage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.SeedJob(t, store, "local", "/uploads/talk.mp4", jobs.MediaVideo)
	job.AudioPath = "/staging/job/audio.wav"

	service := &fakeService{result: transcriber.Result{
		Segments: []jobs.TranscriptSegment{
			{SpeakerID: "spk_0", Text: "Hello there.", StartTime: 0, EndTime: 2.5, Confidence: 0.97},
			{SpeakerID: "spk_0", Text: "Welcome to the show.", StartTime: 2.5, EndTime: 5, Confidence: 0.94},
		},
		DetectedLanguage: "en",
	}}
	handler := NewWithDependencies(cfg, store, logging.NewNop(), service)

	ctx := context.Background()
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if service.audioPath != job.AudioPath {
		t.Fatalf("service got audio %s, want %s", service.audioPath, job.AudioPath)
	}
	if len(job.Transcript) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(job.Transcript))
	}
	if job.DetectedLanguage != "en" {
		t.Fatalf("expected detected language en, got %s", job.DetectedLanguage)
	}
}

func TestTranscribePrepareRequiresAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.SeedJob(t, store, "local", "/uploads/talk.mp4", jobs.MediaVideo)

	handler := NewWithDependencies(cfg, store, logging.NewNop(), &fakeService{})
	if err := handler.Prepare(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscribeServiceErrorPropagates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.SeedJob(t, store, "local", "/uploads/talk.mp4", jobs.MediaVideo)
	job.AudioPath = "/staging/job/audio.wav"

	wantErr := services.Wrap(services.ErrTransient, "transcribing", "transcribe", "service unavailable", nil)
	handler := NewWithDependencies(cfg, store, logging.NewNop(), &fakeService{err: wantErr})

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
