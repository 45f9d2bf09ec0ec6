package clonestage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/services/voiceclone"
	"overdub/internal/testsupport"
)

type fakeLedger struct {
	mu        sync.Mutex
	confirmed []string
	err       error
}

func (f *fakeLedger) Confirm(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.confirmed = append(f.confirmed, jobID)
	return nil
}

type fakeCloneService struct {
	mu       sync.Mutex
	calls    []int
	failOnce map[int]error
	err      error
}

func (f *fakeCloneService) CloneChunk(ctx context.Context, req voiceclone.ChunkRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.ChunkID)
	if err, ok := f.failOnce[req.ChunkID]; ok {
		delete(f.failOnce, req.ChunkID)
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("/staging/chunk-%d.wav", req.ChunkID), nil
}

func (f *fakeCloneService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func cloningJob(t *testing.T, store *jobs.Store) *jobs.Job {
	t.Helper()
	ctx := context.Background()

	job := testsupport.SeedJob(t, store, "local", "/uploads/panel.mp4", jobs.MediaVideo)
	job.Status = jobs.StatusCloning
	job.DetectedLanguage = "en"
	job.Cost = 10
	job.Transcript = []jobs.TranscriptSegment{
		{SpeakerID: "spk_0", Text: "Opening remarks.", TranslatedText: "Palabras de apertura.", StartTime: 0, EndTime: 4},
		{SpeakerID: "spk_1", Text: "A response.", TranslatedText: "Una respuesta.", StartTime: 4, EndTime: 8},
		{SpeakerID: "spk_0", Text: "Closing note.", TranslatedText: "Nota final.", StartTime: 8, EndTime: 12},
	}
	job.Speakers = []jobs.SpeakerInfo{
		{ID: "spk_0", VoiceSample: "/staging/spk_0.wav", TotalDuration: 8, SegmentCount: 2},
		{ID: "spk_1", VoiceSample: "/staging/spk_1.wav", TotalDuration: 4, SegmentCount: 1},
	}
	job.Selection = &jobs.Selection{TargetLanguage: "es", TranslateAll: true}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return job
}

func newCloner(cfg *config.Config, store *jobs.Store, service Service, ledger Ledger) *Cloner {
	return NewWithDependencies(cfg, store, logging.NewNop(), service, ledger)
}

func TestClonerPrepareComputesPlanAndDebits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := cloningJob(t, store)
	ledger := &fakeLedger{}

	handler := newCloner(cfg, store, &fakeCloneService{}, ledger)
	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if job.Clone == nil || job.Clone.TotalChunks == 0 {
		t.Fatal("expected a chunk plan")
	}
	if len(ledger.confirmed) != 1 || ledger.confirmed[0] != job.ID {
		t.Fatalf("expected one debit for %s, got %v", job.ID, ledger.confirmed)
	}
}

func TestClonerPrepareKeepsExistingPlanOnResume(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := cloningJob(t, store)
	job.Clone = &jobs.CloneState{
		TotalChunks:     1,
		CompletedChunks: 1,
		Chunks: []jobs.ClonedChunk{
			{ChunkID: 0, Speakers: []string{"spk_0", "spk_1"}, Status: jobs.ChunkCompleted, AudioPath: "/staging/chunk-0.wav"},
		},
	}

	handler := newCloner(cfg, store, &fakeCloneService{}, &fakeLedger{})
	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if job.Clone.CompletedChunks != 1 {
		t.Fatal("resume must not reset chunk progress")
	}
}

func TestClonerPrepareMissingReservationFailsTerminally(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := cloningJob(t, store)
	ledger := &fakeLedger{err: services.Wrap(services.ErrNotFound, "cloning", "confirm", "no reservation", nil)}

	handler := newCloner(cfg, store, &fakeCloneService{}, ledger)
	err := handler.Prepare(context.Background(), job)
	if !errors.Is(err, services.ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("a missing reservation must not be retried")
	}
}

func TestClonerExecuteClonesAllChunks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxSpeakersPerChunk(1))
	store := testsupport.MustOpenStore(t, cfg)
	job := cloningJob(t, store)
	service := &fakeCloneService{}

	handler := newCloner(cfg, store, service, &fakeLedger{})
	ctx := context.Background()
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	// One speaker per chunk splits the three alternating segments into three
	// chunks.
	if job.Clone.TotalChunks != 3 {
		t.Fatalf("expected 3 chunks, got %d", job.Clone.TotalChunks)
	}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if job.Clone.CompletedChunks != 3 {
		t.Fatalf("expected 3 completed chunks, got %d", job.Clone.CompletedChunks)
	}
	for _, chunk := range job.Clone.Chunks {
		if chunk.Status != jobs.ChunkCompleted || chunk.AudioPath == "" {
			t.Fatalf("chunk %d not completed: %+v", chunk.ChunkID, chunk)
		}
	}

	stored, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Clone == nil || stored.Clone.CompletedChunks != 3 {
		t.Fatal("chunk progress must be persisted")
	}
}

func TestClonerExecuteSkipsCompletedChunks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxSpeakersPerChunk(1))
	store := testsupport.MustOpenStore(t, cfg)
	job := cloningJob(t, store)
	service := &fakeCloneService{}

	handler := newCloner(cfg, store, service, &fakeLedger{})
	ctx := context.Background()
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	job.Clone.Chunks[0].Status = jobs.ChunkCompleted
	job.Clone.Chunks[0].AudioPath = "/staging/chunk-0.wav"
	job.Clone.CompletedChunks = 1
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := service.callCount(); got != 2 {
		t.Fatalf("expected 2 clone calls, got %d", got)
	}
	if job.Clone.CompletedChunks != 3 {
		t.Fatalf("expected 3 completed chunks, got %d", job.Clone.CompletedChunks)
	}
}

func TestClonerRetriesTransientChunkFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxSpeakersPerChunk(1))
	store := testsupport.MustOpenStore(t, cfg)
	job := cloningJob(t, store)
	service := &fakeCloneService{failOnce: map[int]error{
		1: services.Wrap(services.ErrTransient, "cloning", "clone chunk", "service hiccup", nil),
	}}

	handler := newCloner(cfg, store, service, &fakeLedger{})
	ctx := context.Background()
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if job.Clone.CompletedChunks != 3 {
		t.Fatalf("expected all chunks after retry, got %d", job.Clone.CompletedChunks)
	}
}

func TestClonerChunkFailureSurfaces(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxSpeakersPerChunk(1))
	store := testsupport.MustOpenStore(t, cfg)
	job := cloningJob(t, store)
	service := &fakeCloneService{err: services.Wrap(services.ErrValidation, "cloning", "clone chunk", "voice sample rejected", nil)}

	handler := newCloner(cfg, store, service, &fakeLedger{})
	ctx := context.Background()
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	err := handler.Execute(ctx, job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	failed := 0
	for _, chunk := range job.Clone.Chunks {
		if chunk.Status == jobs.ChunkFailed {
			failed++
		}
	}
	if failed == 0 {
		t.Fatal("expected at least one failed chunk recorded")
	}
}
