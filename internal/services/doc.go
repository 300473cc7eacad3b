// Package services defines shared utilities consumed by the pipeline stages
// and the collaborators they call out to.
//
// Key responsibilities:
//   - Context helpers that stamp asset IDs, stage names, and session
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep per-asset
//     failures classifiable after they have been recorded on a catalog entry.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error reporting, observability) stays uniform across the pipeline.
package services
