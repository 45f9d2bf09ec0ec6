package ffprobe

import (
	"context"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", CodecName: "h264"},
			{CodecType: "audio", CodecName: "aac"},
		},
		Format: Format{
			Duration: "125.5",
			Size:     "1048576",
		},
	}

	if !result.HasVideo() {
		t.Fatal("expected video stream detected")
	}
	if !result.HasAudio() {
		t.Fatal("expected audio stream detected")
	}
	if got := result.DurationSeconds(); got != 125.5 {
		t.Fatalf("DurationSeconds = %v, want 125.5", got)
	}
	if got := result.SizeBytes(); got != 1048576 {
		t.Fatalf("SizeBytes = %v, want 1048576", got)
	}
}

func TestCoverArtIsNotVideo(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio", CodecName: "mp3"},
			{CodecType: "video", CodecName: "mjpeg"},
		},
	}
	if result.HasVideo() {
		t.Fatal("expected embedded cover art to be ignored")
	}
	if !result.HasAudio() {
		t.Fatal("expected audio stream detected")
	}
}

func TestEmptyResultDefaults(t *testing.T) {
	var result Result
	if result.HasVideo() || result.HasAudio() {
		t.Fatal("expected empty result to report no streams")
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected zero duration, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected zero size, got %v", result.SizeBytes())
	}
}

func TestInspectRequiresPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
