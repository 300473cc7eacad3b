// Package runner drives a loading session from configuration to Ready: it
// wires logging, metrics, preflight and the pipeline manager, then ticks the
// manager until every asset is prepared or the context is cancelled.
package runner
