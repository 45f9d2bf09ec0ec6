package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServices()
	c.normalizeDubbing()
	c.normalizeTools()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServices() {
	for _, svc := range []*Service{
		&c.Services.Transcriber,
		&c.Services.Diarizer,
		&c.Services.Translator,
		&c.Services.VoiceClone,
		&c.Services.MediaMerge,
	} {
		svc.BaseURL = strings.TrimRight(strings.TrimSpace(svc.BaseURL), "/")
		svc.APIKey = strings.TrimSpace(svc.APIKey)
		if svc.TimeoutSeconds <= 0 {
			svc.TimeoutSeconds = defaultServiceTimeoutSeconds
		}
	}
}

func (c *Config) normalizeDubbing() {
	c.Dubbing.DefaultTargetLanguage = strings.ToLower(strings.TrimSpace(c.Dubbing.DefaultTargetLanguage))
	if c.Dubbing.DefaultTargetLanguage == "" {
		c.Dubbing.DefaultTargetLanguage = defaultTargetLanguage
	}
	if c.Dubbing.MaxSpeakersPerChunk <= 0 {
		c.Dubbing.MaxSpeakersPerChunk = defaultMaxSpeakersPerChunk
	}
	if c.Dubbing.ChunkConcurrency <= 0 {
		c.Dubbing.ChunkConcurrency = defaultChunkConcurrency
	}
	if c.Dubbing.ChunkMaxRetries < 0 {
		c.Dubbing.ChunkMaxRetries = defaultChunkMaxRetries
	}
	if c.Dubbing.MaxRetries <= 0 {
		c.Dubbing.MaxRetries = defaultMaxRetries
	}
	if c.Dubbing.RetryBackoffSeconds <= 0 {
		c.Dubbing.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Dubbing.RetentionHours <= 0 {
		c.Dubbing.RetentionHours = defaultRetentionHours
	}
	if strings.TrimSpace(c.Dubbing.SweepSchedule) == "" {
		c.Dubbing.SweepSchedule = defaultSweepSchedule
	}
}

func (c *Config) normalizeTools() {
	if strings.TrimSpace(c.Tools.FFmpegBinary) == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Tools.FFprobeBinary) == "" {
		c.Tools.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is empty")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return filepath.Abs(path)
}
