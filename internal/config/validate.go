package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBudget(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := validateAssetOptions("defaults", c.Defaults); err != nil {
		return err
	}
	ids := make([]string, 0, len(c.Assets))
	for id := range c.Assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := validateAssetOptions("assets."+id, c.Assets[id]); err != nil {
			return err
		}
	}
	if err := c.validateCompression(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Runner.TickMS <= 0 {
		return errors.New("runner.tick_ms must be positive")
	}
	return nil
}

func (c *Config) validateBudget() error {
	if c.Budget.MaxVRAMMB < 0 {
		return errors.New("budget.max_vram_mb must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.NumThreads < 1 {
		return errors.New("workers.num_threads must be positive (or 0 for one per CPU)")
	}
	return nil
}

func validateAssetOptions(section string, opts AssetOptions) error {
	if err := ensurePositive(map[string]*int{
		section + ".framerate":     opts.FrameRate,
		section + ".buffer_frames": opts.BufferFrames,
		section + ".num_threads":   opts.NumThreads,
	}); err != nil {
		return err
	}
	switch opts.Preload {
	case "", "yes", "no", "auto":
	default:
		return fmt.Errorf("%s.preload: unsupported value %q (use yes, no, or auto)", section, opts.Preload)
	}
	return nil
}

func (c *Config) validateCompression() error {
	switch c.Compression.Level {
	case "fastest", "default", "better", "best":
	default:
		return fmt.Errorf("compression.level: unsupported value %q (use fastest, default, better, or best)", c.Compression.Level)
	}
	if c.Compression.LockTimeoutSeconds <= 0 {
		return errors.New("compression.lock_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func ensurePositive(values map[string]*int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if value := values[key]; value != nil && *value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
