// Package mediamerge calls the service that muxes cloned audio back into the
// source media.
package mediamerge

import (
	"context"

	"overdub/internal/config"
	"overdub/internal/services"
)

// Client talks to the media merge endpoint.
type Client struct {
	http *services.HTTPClient
}

// New builds a media merge client from configuration.
func New(cfg config.Service) (*Client, error) {
	http, err := services.NewHTTPClient("media_merge", cfg)
	if err != nil {
		return nil, err
	}
	return &Client{http: http}, nil
}

type request struct {
	SourcePath string   `json:"sourcePath"`
	ChunkPaths []string `json:"chunkPaths"`
	IsVideo    bool     `json:"isVideo"`
}

type response struct {
	ClonedAudioPath string `json:"clonedAudioPath"`
	FinalMediaPath  string `json:"finalMediaPath"`
}

// Result carries the merged outputs: the concatenated cloned track and the
// final media with that track muxed in.
type Result struct {
	ClonedAudioPath string
	FinalMediaPath  string
}

// Merge reassembles the cloned chunks in planned order. chunkPaths must be
// ordered by chunk ID, not completion order.
func (c *Client) Merge(ctx context.Context, sourcePath string, chunkPaths []string, isVideo bool) (Result, error) {
	if len(chunkPaths) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "merging", "merge",
			"no cloned chunks to merge", nil)
	}
	var result response
	err := c.http.Post(ctx, "/v1/merge", request{
		SourcePath: sourcePath,
		ChunkPaths: chunkPaths,
		IsVideo:    isVideo,
	}, &result)
	if err != nil {
		return Result{}, err
	}
	if result.FinalMediaPath == "" {
		return Result{}, services.Wrap(services.ErrTransient, "merging", "merge",
			"service returned no output reference", nil)
	}
	return Result{
		ClonedAudioPath: result.ClonedAudioPath,
		FinalMediaPath:  result.FinalMediaPath,
	}, nil
}
