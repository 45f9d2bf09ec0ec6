package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validateDubbing(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServices() error {
	named := []struct {
		name string
		svc  Service
	}{
		{"services.transcriber", c.Services.Transcriber},
		{"services.diarizer", c.Services.Diarizer},
		{"services.translator", c.Services.Translator},
		{"services.voice_clone", c.Services.VoiceClone},
		{"services.media_merge", c.Services.MediaMerge},
	}
	for _, entry := range named {
		if entry.svc.RateLimitRPM < 0 {
			return fmt.Errorf("%s.rate_limit_rpm must not be negative", entry.name)
		}
	}
	return nil
}

// maxSpeakersPerChunkLimit is the cloning service's hard cap on distinct
// voices per call; it matches chunking.DefaultMaxSpeakersPerChunk.
const maxSpeakersPerChunkLimit = 4

func (c *Config) validateDubbing() error {
	if c.Dubbing.MaxSpeakersPerChunk < 1 {
		return errors.New("dubbing.max_speakers_per_chunk must be at least 1")
	}
	if c.Dubbing.MaxSpeakersPerChunk > maxSpeakersPerChunkLimit {
		return fmt.Errorf("dubbing.max_speakers_per_chunk must not exceed %d", maxSpeakersPerChunkLimit)
	}
	if c.Dubbing.ChunkConcurrency < 1 {
		return errors.New("dubbing.chunk_concurrency must be at least 1")
	}
	if c.Dubbing.MaxRetries < 1 {
		return errors.New("dubbing.max_retries must be at least 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
