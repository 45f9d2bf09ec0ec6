// Package translator calls the segment translation service.
package translator

import (
	"context"

	"overdub/internal/config"
	"overdub/internal/jobs"
	"overdub/internal/services"
)

// Client talks to the translation endpoint.
type Client struct {
	http *services.HTTPClient
}

// New builds a translator client from configuration.
func New(cfg config.Service) (*Client, error) {
	http, err := services.NewHTTPClient("translator", cfg)
	if err != nil {
		return nil, err
	}
	return &Client{http: http}, nil
}

type request struct {
	Segments       []jobs.TranscriptSegment `json:"segments"`
	SourceLanguage string                   `json:"sourceLanguage,omitempty"`
	TargetLanguage string                   `json:"targetLanguage"`
}

type response struct {
	Segments []jobs.TranscriptSegment `json:"segments"`
}

// Translate returns the input segments with translatedText populated,
// preserving order and count.
func (c *Client) Translate(ctx context.Context, segments []jobs.TranscriptSegment, sourceLanguage, targetLanguage string) ([]jobs.TranscriptSegment, error) {
	var result response
	err := c.http.Post(ctx, "/v1/translate", request{
		Segments:       segments,
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Segments) != len(segments) {
		return nil, services.Wrap(services.ErrTransient, "translating", "translate",
			"service returned a different segment count", nil)
	}
	for i, seg := range result.Segments {
		if seg.TranslatedText == "" {
			return nil, services.Wrap(services.ErrTransient, "translating", "translate",
				"segment missing translated text", nil)
		}
		// The service must not rewrite timing or attribution.
		result.Segments[i].SpeakerID = segments[i].SpeakerID
		result.Segments[i].StartTime = segments[i].StartTime
		result.Segments[i].EndTime = segments[i].EndTime
	}
	return result.Segments, nil
}
