package status

import (
	"fmt"
	"strings"

	"assetprep/internal/pipeline"
)

// Bytes formats b with binary units and the given number of decimals.
func Bytes(b float64, decimals int) string {
	const unit = 1024
	if decimals < 0 {
		decimals = 0
	}
	if b < unit {
		return fmt.Sprintf("%.0f B", b)
	}
	value := b
	exp := -1
	for value >= unit && exp < len("KMGTPE")-1 {
		value /= unit
		exp++
	}
	return fmt.Sprintf("%.*f %ciB", decimals, value, "KMGTPE"[exp])
}

// Summary is the single-line status used for progress logs and debug
// overlays.
func Summary(snap pipeline.Snapshot) string {
	var b strings.Builder
	p := snap.Progress
	fmt.Fprintf(&b, "%s %.0f%%", p.State, p.Overall*100)
	for _, sp := range p.Stages {
		fmt.Fprintf(&b, " | %s %d/%d", sp.Stage, sp.Completed, sp.Total)
		if sp.InFlight > 0 {
			fmt.Fprintf(&b, " (%d running)", sp.InFlight)
		}
	}
	fmt.Fprintf(&b, " | vram %s / %s", Bytes(snap.Budget.Committed, 1), Bytes(snap.Budget.Ceiling, 1))
	if snap.LazyPending > 0 {
		fmt.Fprintf(&b, " | lazy %d", snap.LazyPending)
	}
	return b.String()
}

// Counts tallies assets by outcome.
type Counts struct {
	Preloaded int
	Skipped   int
	Failed    int
	Fallback  int
	Pending   int
}

// Count tallies the assets in snap.
func Count(snap pipeline.Snapshot) Counts {
	var c Counts
	for i := range snap.Assets {
		rec := &snap.Assets[i]
		switch {
		case rec.Failed():
			c.Failed++
		case rec.IsPreloaded:
			c.Preloaded++
		case rec.Terminal():
			c.Skipped++
		default:
			c.Pending++
		}
		if rec.Fallback {
			c.Fallback++
		}
	}
	return c
}
