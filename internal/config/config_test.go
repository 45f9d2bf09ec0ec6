package config_test

import (
	"path/filepath"
	"strings"
	"testing"

	"overdub/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "overdub", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Dubbing.MaxSpeakersPerChunk != 4 {
		t.Fatalf("unexpected default speaker cap: %d", cfg.Dubbing.MaxSpeakersPerChunk)
	}
}

func TestValidateRejectsOutOfRangeSpeakerCap(t *testing.T) {
	cfg := config.Default()

	cfg.Dubbing.MaxSpeakersPerChunk = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "max_speakers_per_chunk") {
		t.Fatalf("expected speaker cap lower-bound error, got %v", err)
	}

	// The cloning service rejects chunks with more than four distinct
	// voices, so configuration must not allow planning them.
	cfg.Dubbing.MaxSpeakersPerChunk = 5
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "max_speakers_per_chunk") {
		t.Fatalf("expected speaker cap upper-bound error, got %v", err)
	}

	cfg.Dubbing.MaxSpeakersPerChunk = 4
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected cap of 4 to validate, got %v", err)
	}
}

func TestValidateHeartbeatBounds(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.HeartbeatTimeout = cfg.Workflow.HeartbeatInterval
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "heartbeat_timeout") {
		t.Fatalf("expected heartbeat bound error, got %v", err)
	}
}
