package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"assetprep/internal/asset"
	"assetprep/internal/config"
	"assetprep/internal/framepack"
	"assetprep/internal/materialize"
	"assetprep/internal/metrics"
	"assetprep/internal/services"
)

// LoadOptionsFromConfig converts resolved config options.
func LoadOptionsFromConfig(resolved config.ResolvedOptions) (asset.LoadOptions, error) {
	pref, err := asset.ParsePreference(resolved.Preload)
	if err != nil {
		return asset.LoadOptions{}, err
	}
	return asset.LoadOptions{
		UseCompression: resolved.UseCompression,
		FrameRate:      resolved.FrameRate,
		BufferFrames:   resolved.BufferFrames,
		NumThreads:     resolved.NumThreads,
		Preload:        pref,
	}, nil
}

// OptionsFromConfig builds manager options with the default collaborators:
// a framepack engine writing into compressed_dir and a materialize.Loader.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, sessionID string) (Options, error) {
	if cfg == nil {
		return Options{}, services.Wrap(services.ErrConfiguration, "setup", "load config", "Configuration is missing", nil)
	}
	defaults, err := LoadOptionsFromConfig(cfg.OptionsFor(""))
	if err != nil {
		return Options{}, services.Wrap(services.ErrConfiguration, "setup", "defaults", "Invalid [defaults] table", err)
	}
	overrides := make(map[string]asset.LoadOptions, len(cfg.Assets))
	for id := range cfg.Assets {
		opts, err := LoadOptionsFromConfig(cfg.OptionsFor(id))
		if err != nil {
			return Options{}, services.Wrap(services.ErrConfiguration, "setup", "asset options",
				fmt.Sprintf("Invalid [assets.%s] table", id), err)
		}
		overrides[id] = opts
	}
	level, err := framepack.ParseLevel(cfg.Compression.Level)
	if err != nil {
		return Options{}, services.Wrap(services.ErrConfiguration, "setup", "compression level", "Invalid compression level", err)
	}
	return Options{
		MaxVRAMBytes: cfg.MaxVRAMBytes(),
		NumThreads:   cfg.Workers.NumThreads,
		PlayReverse:  cfg.Playback.Reverse,
		Defaults:     defaults,
		Overrides:    overrides,
		Engine: framepack.New(cfg.Paths.CompressedDir, level,
			time.Duration(cfg.Compression.LockTimeoutSeconds)*time.Second, logger),
		Materializer: materialize.NewLoader(logger),
		Logger:       logger,
		Metrics:      m,
		SessionID:    sessionID,
	}, nil
}

// NewManagerFromConfig sets up a manager over cfg with the default
// collaborators. See NewManagerFromOptions.
func NewManagerFromConfig(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, sessionID string) (*Manager, error) {
	opts, err := OptionsFromConfig(cfg, logger, m, sessionID)
	if err != nil {
		return nil, err
	}
	return NewManagerFromOptions(cfg, opts)
}

// NewManagerFromOptions sets up a manager with opts and registers every
// asset found in asset_dir followed by the [assets.<id>] entries that name a
// path.
func NewManagerFromOptions(cfg *config.Config, opts Options) (*Manager, error) {
	mgr := NewManager()
	var err error
	if info, statErr := os.Stat(cfg.Paths.AssetDir); statErr == nil && info.IsDir() {
		err = mgr.SetupFolder(cfg.Paths.AssetDir, opts)
	} else {
		err = mgr.Setup(opts)
	}
	if err != nil {
		return nil, err
	}
	for _, id := range cfg.ExplicitAssets() {
		path, err := config.ExpandPath(cfg.Assets[id].Path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "setup", "asset path",
				fmt.Sprintf("Invalid path for [assets.%s]", id), err)
		}
		if err := mgr.AddAsset(id, path); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}
