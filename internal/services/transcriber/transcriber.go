// Package transcriber calls the speech-to-text service.
package transcriber

import (
	"context"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/services"
)

// Client talks to the transcription endpoint.
type Client struct {
	http *services.HTTPClient
}

// New builds a transcriber client from configuration.
func New(cfg config.Service) (*Client, error) {
	http, err := services.NewHTTPClient("transcriber", cfg)
	if err != nil {
		return nil, err
	}
	return &Client{http: http}, nil
}

type request struct {
	AudioPath    string `json:"audioPath"`
	LanguageHint string `json:"languageHint,omitempty"`
}

// Result is the transcription payload: ordered segments plus the language
// the service detected.
type Result struct {
	Segments         []jobs.TranscriptSegment `json:"segments"`
	DetectedLanguage string                   `json:"detectedLanguage"`
}

// Transcribe converts the extracted audio into an ordered transcript.
func (c *Client) Transcribe(ctx context.Context, audioPath, languageHint string) (Result, error) {
	var result Result
	err := c.http.Post(ctx, "/v1/transcriptions", request{
		AudioPath:    audioPath,
		LanguageHint: languageHint,
	}, &result)
	if err != nil {
		return Result{}, err
	}
	if len(result.Segments) == 0 {
		return Result{}, services.Wrap(services.ErrTransient, "transcribing", "transcribe",
			"service returned an empty transcript", nil)
	}
	return result, nil
}
