package translate

import (
	"context"
	"errors"
	"testing"

	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/testsupport"
)

type fakeService struct {
	sourceLanguage string
	targetLanguage string
	err            error
}

func (f *fakeService) Translate(ctx context.Context, segments []jobs.TranscriptSegment, sourceLanguage, targetLanguage string) ([]jobs.TranscriptSegment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sourceLanguage = sourceLanguage
	f.targetLanguage = targetLanguage
	out := append([]jobs.TranscriptSegment(nil), segments...)
	for i := range out {
		out[i].TranslatedText = "[es] " + out[i].Text
	}
	return out, nil
}

func translateJob(t *testing.T, store *jobs.Store) *jobs.Job {
	t.Helper()
	job := testsupport.SeedJob(t, store, "local", "/uploads/panel.mp4", jobs.MediaVideo)
	job.DetectedLanguage = "en"
	job.Transcript = []jobs.TranscriptSegment{
		{SpeakerID: "spk_0", Text: "Good morning.", StartTime: 0, EndTime: 3},
		{SpeakerID: "spk_1", Text: "Morning to you.", StartTime: 3, EndTime: 6},
		{SpeakerID: "spk_0", Text: "Let us begin.", StartTime: 6, EndTime: 9},
	}
	job.Speakers = []jobs.SpeakerInfo{
		{ID: "spk_0", TotalDuration: 6, SegmentCount: 2},
		{ID: "spk_1", TotalDuration: 3, SegmentCount: 1},
	}
	job.Selection = &jobs.Selection{TargetLanguage: "es", TranslateAll: true}
	return job
}

func TestTranslatePopulatesSelectedSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := translateJob(t, store)
	job.Selection = &jobs.Selection{
		TargetLanguage: "es",
		Filters:        []jobs.SegmentFilter{{Type: jobs.FilterSpeaker, SpeakerID: "spk_0"}},
	}

	service := &fakeService{}
	handler := NewWithDependencies(cfg, store, logging.NewNop(), service)

	ctx := context.Background()
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if service.sourceLanguage != "en" || service.targetLanguage != "es" {
		t.Fatalf("unexpected language pair %s -> %s", service.sourceLanguage, service.targetLanguage)
	}
	if job.Transcript[0].TranslatedText != "[es] Good morning." {
		t.Fatalf("selected segment not translated: %+v", job.Transcript[0])
	}
	if job.Transcript[2].TranslatedText != "[es] Let us begin." {
		t.Fatalf("selected segment not translated: %+v", job.Transcript[2])
	}
	// The other speaker was filtered out and keeps its original text only.
	if job.Transcript[1].TranslatedText != "" {
		t.Fatalf("unselected segment must stay untranslated: %+v", job.Transcript[1])
	}
}

func TestTranslateAllCoversEverySegment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := translateJob(t, store)

	handler := NewWithDependencies(cfg, store, logging.NewNop(), &fakeService{})
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for i, seg := range job.Transcript {
		if seg.TranslatedText == "" {
			t.Fatalf("segment %d not translated", i)
		}
	}
}

func TestTranslateEmptySelectionIsValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := translateJob(t, store)
	job.Selection = &jobs.Selection{
		TargetLanguage: "es",
		Filters:        []jobs.SegmentFilter{{Type: jobs.FilterSpeaker, SpeakerID: "spk_9"}},
	}

	handler := NewWithDependencies(cfg, store, logging.NewNop(), &fakeService{})
	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranslateServiceErrorPropagates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := translateJob(t, store)

	wantErr := services.Wrap(services.ErrTransient, "translating", "translate", "rate limited", nil)
	handler := NewWithDependencies(cfg, store, logging.NewNop(), &fakeService{err: wantErr})

	if err := handler.Execute(context.Background(), job); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
