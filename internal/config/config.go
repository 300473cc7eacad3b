package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	AssetDir      string `toml:"asset_dir"`
	CompressedDir string `toml:"compressed_dir"`
	LogDir        string `toml:"log_dir"`
}

// Budget contains the VRAM ceiling used for preload admission.
type Budget struct {
	MaxVRAMMB float64 `toml:"max_vram_mb"`
}

// Workers contains the pipeline worker pool size. Zero means one worker per CPU.
type Workers struct {
	NumThreads int `toml:"num_threads"`
}

// Playback contains global playback settings applied to every animation.
type Playback struct {
	Reverse bool `toml:"reverse"`
}

// AssetOptions holds the load options applied to an asset. Fields left unset
// in an [assets.<id>] table inherit the [defaults] table.
type AssetOptions struct {
	UseCompression *bool  `toml:"use_compression,omitempty"`
	FrameRate      *int   `toml:"framerate,omitempty"`
	BufferFrames   *int   `toml:"buffer_frames,omitempty"`
	NumThreads     *int   `toml:"num_threads,omitempty"`
	Preload        string `toml:"preload,omitempty"`
	Path           string `toml:"path,omitempty"`
}

// Compression contains settings for the frame archive compression engine.
type Compression struct {
	Level              string `toml:"level"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains Prometheus exposition settings.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Runner contains the tick interval used when the CLI drives the pipeline.
type Runner struct {
	TickMS int `toml:"tick_ms"`
}

// Config encapsulates all configuration values for assetprep.
//
// Configuration sections by subsystem:
//   - Paths: asset folder, compressed variant output, logs
//   - Budget: VRAM ceiling for preload admission
//   - Workers: pipeline worker pool size
//   - Playback: global playback direction
//   - Defaults / Assets: per-asset load options
//   - Compression: frame archive engine settings
//   - Logging: log format and level
//   - Metrics: Prometheus endpoint
//   - Runner: CLI tick interval
type Config struct {
	Paths       Paths                   `toml:"paths"`
	Budget      Budget                  `toml:"budget"`
	Workers     Workers                 `toml:"workers"`
	Playback    Playback                `toml:"playback"`
	Defaults    AssetOptions            `toml:"defaults"`
	Assets      map[string]AssetOptions `toml:"assets"`
	Compression Compression             `toml:"compression"`
	Logging     Logging                 `toml:"logging"`
	Metrics     Metrics                 `toml:"metrics"`
	Runner      Runner                  `toml:"runner"`
}

// ResolvedOptions is an AssetOptions with every field filled in.
type ResolvedOptions struct {
	UseCompression bool
	FrameRate      int
	BufferFrames   int
	NumThreads     int
	Preload        string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/assetprep/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return "", false, fmt.Errorf("config file %s does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("assetprep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes to. The asset
// directory is only read and is never created.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CompressedDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxVRAMBytes returns the configured VRAM ceiling in bytes.
func (c *Config) MaxVRAMBytes() float64 {
	return c.Budget.MaxVRAMMB * 1024 * 1024
}

// OptionsFor merges the [assets.<id>] overrides for id over the defaults.
func (c *Config) OptionsFor(id string) ResolvedOptions {
	resolved := ResolvedOptions{
		UseCompression: boolValue(c.Defaults.UseCompression, defaultUseCompression),
		FrameRate:      intValue(c.Defaults.FrameRate, defaultFrameRate),
		BufferFrames:   intValue(c.Defaults.BufferFrames, defaultBufferFrames),
		NumThreads:     intValue(c.Defaults.NumThreads, defaultAssetThreads),
		Preload:        c.Defaults.Preload,
	}
	override, ok := c.Assets[id]
	if !ok {
		return resolved
	}
	resolved.UseCompression = boolValue(override.UseCompression, resolved.UseCompression)
	resolved.FrameRate = intValue(override.FrameRate, resolved.FrameRate)
	resolved.BufferFrames = intValue(override.BufferFrames, resolved.BufferFrames)
	resolved.NumThreads = intValue(override.NumThreads, resolved.NumThreads)
	if override.Preload != "" {
		resolved.Preload = override.Preload
	}
	return resolved
}

// ExplicitAssets returns the [assets.<id>] entries that carry a path, sorted by ID
// so registration order is stable across runs.
func (c *Config) ExplicitAssets() []string {
	ids := make([]string, 0, len(c.Assets))
	for id, opts := range c.Assets {
		if strings.TrimSpace(opts.Path) != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func boolValue(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func intValue(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
