// Package stage names the fixed pipeline stages and carries the per-stage
// progress and health records shared by the pipeline, the metrics exporter,
// and the CLI.
package stage

import "fmt"

// Name identifies one of the ordered pipeline stages.
type Name string

const (
	Check    Name = "check"
	Compress Name = "compress"
	Preload  Name = "preload"
	// Lazy is the post-pipeline materialization of skipped assets.
	Lazy Name = "lazy"
)

// All returns the ordered pipeline stages. Lazy is not part of the order.
func All() []Name {
	return []Name{Check, Compress, Preload}
}

// Index returns the position of n in All, or -1.
func (n Name) Index() int {
	for i, candidate := range All() {
		if candidate == n {
			return i
		}
	}
	return -1
}

// Progress is a point-in-time view of one stage.
type Progress struct {
	Stage     Name
	Pending   int
	InFlight  int
	Completed int
	// Completed counts assets the stage is done with, including those that
	// bypassed it or were excluded upstream. Total is the catalog size.
	Total int
	// InFlightMean is the mean progress of in-flight tasks, 0..1.
	InFlightMean float64
	// Fraction is the high-water completion ratio; it never decreases.
	Fraction float64
}

// Drained reports whether nothing is queued or running.
func (p Progress) Drained() bool {
	return p.Pending == 0 && p.InFlight == 0
}

// Raw returns (completed + in-flight mean progress) / total, without the
// high-water clamp. An empty stage counts as complete.
func (p Progress) Raw() float64 {
	if p.Total == 0 {
		return 1
	}
	raw := (float64(p.Completed) + p.InFlightMean*float64(p.InFlight)) / float64(p.Total)
	switch {
	case raw < 0:
		return 0
	case raw > 1:
		return 1
	}
	return raw
}

func (p Progress) String() string {
	return fmt.Sprintf("%s %d/%d (%d running, %d queued) %.0f%%",
		p.Stage, p.Completed, p.Total, p.InFlight, p.Pending, p.Fraction*100)
}
