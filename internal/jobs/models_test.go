package jobs_test

import (
	"testing"

	"overdub/internal/jobs"
)

func TestNewJobDefaults(t *testing.T) {
	job := jobs.New("user-1", "/tmp/in.mp4", jobs.MediaVideo, 3)
	if job.ID == "" {
		t.Fatal("expected generated job ID")
	}
	if job.Status != jobs.StatusUploading {
		t.Fatalf("expected uploading status, got %s", job.Status)
	}
	if job.MaxRetries != 3 {
		t.Fatalf("expected max retries 3, got %d", job.MaxRetries)
	}
	if !job.IsVideo() {
		t.Fatal("expected video job")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    jobs.Status
		to      jobs.Status
		allowed bool
	}{
		{"upload to extract", jobs.StatusUploading, jobs.StatusExtracting, true},
		{"transcribe pauses", jobs.StatusTranscribing, jobs.StatusTranscribingDone, true},
		{"pause waits for user", jobs.StatusTranscribingDone, jobs.StatusClustering, true},
		{"pause cannot skip ahead", jobs.StatusTranscribingDone, jobs.StatusTranslating, false},
		{"cluster may skip translation", jobs.StatusClustering, jobs.StatusCloning, true},
		{"cluster to translate", jobs.StatusClustering, jobs.StatusTranslating, true},
		{"no backwards hop", jobs.StatusCloning, jobs.StatusTranscribing, false},
		{"completed is terminal", jobs.StatusCompleted, jobs.StatusUploading, false},
		{"failed can restart", jobs.StatusFailed, jobs.StatusRetrying, true},
		{"retrying re-enters stage", jobs.StatusRetrying, jobs.StatusCloning, true},
		{"merge completes", jobs.StatusMerging, jobs.StatusCompleted, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := jobs.CanTransition(tc.from, tc.to); got != tc.allowed {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := jobs.ParseStatus("  Transcribing_Done "); !ok || status != jobs.StatusTranscribingDone {
		t.Fatalf("expected transcribing_done, got %q ok=%v", status, ok)
	}
	if _, ok := jobs.ParseStatus("bogus"); ok {
		t.Fatal("expected bogus status to be rejected")
	}
	if _, ok := jobs.ParseStatus(""); ok {
		t.Fatal("expected empty status to be rejected")
	}
}

func TestNeedsTranslation(t *testing.T) {
	job := jobs.New("user-1", "/tmp/in.wav", jobs.MediaAudio, 3)
	job.DetectedLanguage = "en"
	if job.NeedsTranslation() {
		t.Fatal("expected no translation without a selection")
	}
	job.Selection = &jobs.Selection{TargetLanguage: "EN"}
	if job.NeedsTranslation() {
		t.Fatal("expected case-insensitive language match to skip translation")
	}
	job.Selection.TargetLanguage = "en-US"
	if job.NeedsTranslation() {
		t.Fatal("expected region variants of the detected language to match")
	}
	job.Selection.TargetLanguage = "es"
	if !job.NeedsTranslation() {
		t.Fatal("expected translation when target differs from detected")
	}
}

func TestSetStepProgressMonotonic(t *testing.T) {
	job := jobs.New("user-1", "/tmp/in.wav", jobs.MediaAudio, 3)
	job.SetStep("Transcribing", 40)
	job.SetStep("Transcribing audio", 25)
	if job.Progress != 40 {
		t.Fatalf("expected progress to stay at 40, got %d", job.Progress)
	}
	job.SetStep("Almost done", 250)
	if job.Progress != 100 {
		t.Fatalf("expected progress capped at 100, got %d", job.Progress)
	}
	job.ResetProgress("Restarting")
	if job.Progress != 0 {
		t.Fatalf("expected progress reset to 0, got %d", job.Progress)
	}
}

func TestValidateRejectsPayloadMismatch(t *testing.T) {
	job := jobs.New("user-1", "/tmp/in.wav", jobs.MediaAudio, 3)
	job.Selection = &jobs.Selection{TargetLanguage: "es"}
	if err := job.Validate(); err == nil {
		t.Fatal("expected selection payload during upload to be rejected")
	}

	job.Selection = nil
	job.Status = jobs.StatusClustering
	job.Clone = &jobs.CloneState{TotalChunks: 1}
	if err := job.Validate(); err == nil {
		t.Fatal("expected clone payload during clustering to be rejected")
	}

	job.Clone = nil
	job.Transcript = []jobs.TranscriptSegment{{SpeakerID: "spk_0", Text: "hello", StartTime: 0, EndTime: 1.5}}
	job.Selection = &jobs.Selection{TargetLanguage: "es"}
	if err := job.Validate(); err != nil {
		t.Fatalf("expected clustering job with transcript and selection to validate, got %v", err)
	}
}

func TestValidateSpeakerReferences(t *testing.T) {
	job := jobs.New("user-1", "/tmp/in.wav", jobs.MediaAudio, 3)
	job.Status = jobs.StatusCloning
	job.DetectedLanguage = "en"
	job.Transcript = []jobs.TranscriptSegment{{SpeakerID: "spk_0", Text: "hola", StartTime: 0, EndTime: 2}}
	job.Speakers = []jobs.SpeakerInfo{{ID: "spk_0", TotalDuration: 2, SegmentCount: 1}}
	job.Selection = &jobs.Selection{
		TargetLanguage: "es",
		VoiceMapping: map[string]jobs.VoiceChoice{
			"spk_9": {Type: jobs.VoiceOriginal},
		},
	}
	if err := job.Validate(); err == nil {
		t.Fatal("expected voice mapping for unknown speaker to be rejected")
	}

	job.Selection.VoiceMapping = map[string]jobs.VoiceChoice{
		"spk_0": {Type: jobs.VoiceCharacter, CharacterID: "narrator"},
	}
	if err := job.Validate(); err != nil {
		t.Fatalf("expected valid voice mapping to pass, got %v", err)
	}
}
