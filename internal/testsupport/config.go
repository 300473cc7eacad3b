package testsupport

import (
	"path/filepath"
	"testing"

	"assetprep/internal/config"
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
	cfgVal.Paths.AssetDir = filepath.Join(base, "assets")
	cfgVal.Paths.CompressedDir = filepath.Join(base, "compressed")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workers.NumThreads = 2
	cfgVal.Metrics.Bind = "127.0.0.1:0"

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

// WithBudgetMB sets the VRAM ceiling on the test config.
func WithBudgetMB(mb float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Budget.MaxVRAMMB = mb
	}
}

// WithThreads sets the pipeline worker pool size.
func WithThreads(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.NumThreads = n
	}
}

// WithAssetOverride adds an [assets.<id>] table.
func WithAssetOverride(id string, opts config.AssetOptions) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Assets == nil {
			b.cfg.Assets = make(map[string]config.AssetOptions)
		}
		b.cfg.Assets[id] = opts
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.AssetDir)
}
