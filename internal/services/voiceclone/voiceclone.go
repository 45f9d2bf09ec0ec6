// Package voiceclone calls the voice cloning service, one chunk per request.
package voiceclone

import (
	"context"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/services"
)

// Client talks to the voice cloning endpoint.
type Client struct {
	http *services.HTTPClient
}

// New builds a voice clone client from configuration.
func New(cfg config.Service) (*Client, error) {
	http, err := services.NewHTTPClient("voice_clone", cfg)
	if err != nil {
		return nil, err
	}
	return &Client{http: http}, nil
}

// ChunkRequest describes one cloning work unit: the segments to synthesize
// and, per speaker, either a reference sample or a character voice.
type ChunkRequest struct {
	ChunkID      int                         `json:"chunkId"`
	Segments     []jobs.TranscriptSegment    `json:"segments"`
	VoiceSamples map[string]string           `json:"voiceSamples,omitempty"`
	VoiceMapping map[string]jobs.VoiceChoice `json:"voiceMapping,omitempty"`
}

type response struct {
	AudioPath string `json:"audioPath"`
}

// CloneChunk synthesizes one chunk and returns the produced audio reference.
func (c *Client) CloneChunk(ctx context.Context, req ChunkRequest) (string, error) {
	var result response
	if err := c.http.Post(ctx, "/v1/clone", req, &result); err != nil {
		return "", err
	}
	if result.AudioPath == "" {
		return "", services.Wrap(services.ErrTransient, "cloning", "clone chunk",
			"service returned no audio reference", nil)
	}
	return result.AudioPath, nil
}
