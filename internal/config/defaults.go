package config

const (
	defaultStagingDir = "~/.local/share/overdub/staging"
	defaultOutputDir  = "~/.local/share/overdub/output"
	defaultLogDir     = "~/.local/share/overdub/logs"

	defaultServiceTimeoutSeconds = 300

	defaultTargetLanguage      = "es"
	defaultMaxSpeakersPerChunk = 4
	defaultChunkConcurrency    = 2
	defaultChunkMaxRetries     = 2
	defaultMaxRetries          = 3
	defaultRetryBackoffSeconds = 10
	defaultRetentionHours      = 48
	defaultSweepSchedule       = "@hourly"

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Services: Services{
			Transcriber: Service{TimeoutSeconds: defaultServiceTimeoutSeconds},
			Diarizer:    Service{TimeoutSeconds: defaultServiceTimeoutSeconds},
			Translator:  Service{TimeoutSeconds: defaultServiceTimeoutSeconds},
			VoiceClone:  Service{TimeoutSeconds: defaultServiceTimeoutSeconds},
			MediaMerge:  Service{TimeoutSeconds: defaultServiceTimeoutSeconds},
		},
		Dubbing: Dubbing{
			DefaultTargetLanguage: defaultTargetLanguage,
			MaxSpeakersPerChunk:   defaultMaxSpeakersPerChunk,
			ChunkConcurrency:      defaultChunkConcurrency,
			ChunkMaxRetries:       defaultChunkMaxRetries,
			MaxRetries:            defaultMaxRetries,
			RetryBackoffSeconds:   defaultRetryBackoffSeconds,
			RetentionHours:        defaultRetentionHours,
			SweepSchedule:         defaultSweepSchedule,
		},
		Tools: Tools{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completion:     true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
