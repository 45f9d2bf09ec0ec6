// Package diarizer calls the speaker diarization service.
package diarizer

import (
	"context"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/services"
)

// Client talks to the diarization endpoint.
type Client struct {
	http *services.HTTPClient
}

// New builds a diarizer client from configuration.
func New(cfg config.Service) (*Client, error) {
	http, err := services.NewHTTPClient("diarizer", cfg)
	if err != nil {
		return nil, err
	}
	return &Client{http: http}, nil
}

type request struct {
	AudioPath string                   `json:"audioPath"`
	Segments  []jobs.TranscriptSegment `json:"segments"`
}

// Result carries the clustered speaker set and the speaker assignment for
// every input segment, in input order.
type Result struct {
	Speakers    []jobs.SpeakerInfo `json:"speakers"`
	Assignments []string           `json:"assignments"`
}

// Cluster groups the transcript's utterances into distinct speakers.
func (c *Client) Cluster(ctx context.Context, audioPath string, segments []jobs.TranscriptSegment) (Result, error) {
	var result Result
	err := c.http.Post(ctx, "/v1/diarize", request{AudioPath: audioPath, Segments: segments}, &result)
	if err != nil {
		return Result{}, err
	}
	if len(result.Speakers) == 0 {
		return Result{}, services.Wrap(services.ErrTransient, "clustering", "diarize",
			"service returned no speakers", nil)
	}
	if len(result.Assignments) != 0 && len(result.Assignments) != len(segments) {
		return Result{}, services.Wrap(services.ErrTransient, "clustering", "diarize",
			"assignment count does not match segment count", nil)
	}
	return result, nil
}
