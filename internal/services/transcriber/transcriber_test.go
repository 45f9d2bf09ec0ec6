package transcriber_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"overdub/internal/config"
	"overdub/internal/services"
	"overdub/internal/services/transcriber"
)

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["audioPath"] != "/tmp/audio.wav" || req["languageHint"] != "en" {
			t.Errorf("unexpected request: %v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
            "detectedLanguage": "en",
            "segments": [
                {"speakerId": "", "text": "hello world", "startTime": 0, "endTime": 2.5, "confidence": 0.95}
            ]
        }`))
	}))
	defer server.Close()

	client, err := transcriber.New(config.Service{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := client.Transcribe(context.Background(), "/tmp/audio.wav", "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.DetectedLanguage != "en" {
		t.Fatalf("expected detected language en, got %q", result.DetectedLanguage)
	}
	if len(result.Segments) != 1 || result.Segments[0].Text != "hello world" {
		t.Fatalf("unexpected segments: %#v", result.Segments)
	}
}

func TestTranscribeRejectsEmptyTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detectedLanguage": "en", "segments": []}`))
	}))
	defer server.Close()

	client, err := transcriber.New(config.Service{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Transcribe(context.Background(), "/tmp/audio.wav", "")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
