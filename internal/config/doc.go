// Package config loads, normalizes, and validates assetprep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ASSETPREP_MAX_VRAM_MB. The Config type centralizes every knob the pipeline
// and CLI need: the asset folder, the VRAM ceiling, the worker count, the
// default per-asset load options, and per-asset overrides keyed by asset ID.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical preload preferences, and clear validation errors.
package config
