package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBudget(); err != nil {
		return err
	}
	if err := c.normalizeWorkers(); err != nil {
		return err
	}
	c.normalizeAssetOptions()
	c.normalizeCompression()
	c.normalizeLogging()
	c.normalizeMetrics()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.AssetDir, err = expandPath(strings.TrimSpace(c.Paths.AssetDir)); err != nil {
		return fmt.Errorf("paths.asset_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CompressedDir) == "" {
		c.Paths.CompressedDir = defaultCompressedDir
	}
	if c.Paths.CompressedDir, err = expandPath(c.Paths.CompressedDir); err != nil {
		return fmt.Errorf("paths.compressed_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	for id, opts := range c.Assets {
		if strings.TrimSpace(opts.Path) == "" {
			continue
		}
		if opts.Path, err = expandPath(strings.TrimSpace(opts.Path)); err != nil {
			return fmt.Errorf("assets.%s.path: %w", id, err)
		}
		c.Assets[id] = opts
	}
	return nil
}

func (c *Config) normalizeBudget() error {
	if value, ok := os.LookupEnv("ASSETPREP_MAX_VRAM_MB"); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("ASSETPREP_MAX_VRAM_MB: %w", err)
		}
		c.Budget.MaxVRAMMB = parsed
	}
	return nil
}

func (c *Config) normalizeWorkers() error {
	if value, ok := os.LookupEnv("ASSETPREP_NUM_THREADS"); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("ASSETPREP_NUM_THREADS: %w", err)
		}
		c.Workers.NumThreads = parsed
	}
	if c.Workers.NumThreads == 0 {
		c.Workers.NumThreads = runtime.NumCPU()
	}
	return nil
}

func (c *Config) normalizeAssetOptions() {
	c.Defaults.Preload = normalizePreload(c.Defaults.Preload)
	if c.Defaults.Preload == "" {
		c.Defaults.Preload = defaultPreload
	}
	for id, opts := range c.Assets {
		opts.Preload = normalizePreload(opts.Preload)
		c.Assets[id] = opts
	}
}

// normalizePreload maps accepted spellings onto yes/no/auto. Unknown values
// are returned lowercased so validation can report them.
func normalizePreload(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "yes", "true", "always":
		return "yes"
	case "no", "false", "never":
		return "no"
	case "auto", "dont_care", "let_manager_decide":
		return "auto"
	default:
		return v
	}
}

func (c *Config) normalizeCompression() {
	c.Compression.Level = strings.ToLower(strings.TrimSpace(c.Compression.Level))
	if c.Compression.Level == "" {
		c.Compression.Level = defaultCompressionLevel
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

func (c *Config) normalizeMetrics() {
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
}
