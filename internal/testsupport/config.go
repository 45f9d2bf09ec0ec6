package testsupport

import (
	"path/filepath"
	"testing"

	"overdub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTargetLanguage overrides the default target language on the test config.
func WithTargetLanguage(lang string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dubbing.DefaultTargetLanguage = lang
	}
}

// WithMaxSpeakersPerChunk overrides the chunk speaker cap on the test config.
func WithMaxSpeakersPerChunk(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dubbing.MaxSpeakersPerChunk = n
	}
}

// WithServiceBaseURL points every processing service at the same base URL,
// typically an httptest server.
func WithServiceBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		for _, svc := range []*config.Service{
			&b.cfg.Services.Transcriber,
			&b.cfg.Services.Diarizer,
			&b.cfg.Services.Translator,
			&b.cfg.Services.VoiceClone,
			&b.cfg.Services.MediaMerge,
		} {
			svc.BaseURL = url
			svc.APIKey = "test"
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
