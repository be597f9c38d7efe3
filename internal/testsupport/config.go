package testsupport

import (
	"path/filepath"
	"testing"

	"scenesmith/internal/config"
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
	cfgVal.LLM.APIKey = "test"
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "ledger.db")

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

// WithLLMEndpoint points the collaborator client at url, typically an
// httptest server.
func WithLLMEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
		b.cfg.LLM.MaxRetries = 0
		b.cfg.LLM.TimeoutSeconds = 5
	}
}

// WithSceneBounds overrides the plan scene-count bounds.
func WithSceneBounds(minScenes, maxScenes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Plan.MinScenes = minScenes
		b.cfg.Plan.MaxScenes = maxScenes
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
