// Package budget implements the one-way VRAM admission gate used by the
// preload stage.
//
// An Allocator is owned by the pipeline coordinator. Decisions and commits
// happen in the same call so there is no window between deciding and
// charging. Nothing is ever released during a session.
package budget

import "assetprep/internal/asset"

// Reason explains an admission decision.
type Reason string

const (
	ReasonForced   Reason = "forced"
	ReasonFits     Reason = "fits_budget"
	ReasonDeclined Reason = "declined_by_options"
	ReasonExceeds  Reason = "exceeds_budget"
)

// Decision is the outcome of TryAdmit.
type Decision struct {
	Granted bool
	Reason  Reason
	// Total is the running total after the decision.
	Total float64
}

// Allocator tracks a fixed ceiling and the bytes committed to preloaded assets.
// Automatic admissions never push Total above Ceiling; forced admissions are
// always granted and always counted.
type Allocator struct {
	ceiling  float64
	total    float64
	admitted int
	denied   int
}

// New returns an allocator with the given ceiling in bytes. Negative ceilings
// are treated as zero.
func New(ceiling float64) *Allocator {
	if ceiling < 0 {
		ceiling = 0
	}
	return &Allocator{ceiling: ceiling}
}

// TryAdmit decides whether an asset of the given size is preloaded and
// commits it when granted.
func (a *Allocator) TryAdmit(size float64, pref asset.Preference) Decision {
	if size < 0 {
		size = 0
	}
	switch pref {
	case asset.PreloadYes:
		return a.grant(size, ReasonForced)
	case asset.PreloadNo:
		return a.deny(ReasonDeclined)
	}
	if a.total+size <= a.ceiling {
		return a.grant(size, ReasonFits)
	}
	return a.deny(ReasonExceeds)
}

func (a *Allocator) grant(size float64, reason Reason) Decision {
	a.total += size
	a.admitted++
	return Decision{Granted: true, Reason: reason, Total: a.total}
}

func (a *Allocator) deny(reason Reason) Decision {
	a.denied++
	return Decision{Granted: false, Reason: reason, Total: a.total}
}

// Ceiling returns the configured ceiling in bytes.
func (a *Allocator) Ceiling() float64 { return a.ceiling }

// Total returns the bytes committed so far.
func (a *Allocator) Total() float64 { return a.total }

// Remaining returns the headroom left for automatic admissions; zero once
// forced admissions have overrun the ceiling.
func (a *Allocator) Remaining() float64 {
	if a.total >= a.ceiling {
		return 0
	}
	return a.ceiling - a.total
}

// Admitted returns the number of granted admissions.
func (a *Allocator) Admitted() int { return a.admitted }

// Denied returns the number of denied admissions.
func (a *Allocator) Denied() int { return a.denied }
