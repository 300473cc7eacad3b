package preflight

import (
	"context"

	"assetprep/internal/config"
	"assetprep/internal/stage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// HealthChecker is a stage collaborator that can report its own readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) stage.Health
}

// RunAll executes the directory checks for cfg followed by the health check
// of every collaborator that implements HealthChecker. Other values are
// ignored so callers can pass pipeline collaborators as they are.
func RunAll(ctx context.Context, cfg *config.Config, collaborators ...any) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Asset directory", cfg.Paths.AssetDir, ReadOnly),
		CheckDirectoryAccess("Compressed directory", cfg.Paths.CompressedDir, ReadWrite),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir, ReadWrite))
	}

	for _, c := range collaborators {
		checker, ok := c.(HealthChecker)
		if !ok {
			continue
		}
		results = append(results, FromHealth(checker.HealthCheck(ctx)))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
