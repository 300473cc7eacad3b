package pipeline

import (
	"assetprep/internal/asset"
	"assetprep/internal/stage"
)

// BudgetView is a point-in-time view of the allocator.
type BudgetView struct {
	Ceiling   float64
	Committed float64
	Remaining float64
	Admitted  int
	Denied    int
}

// Progress is the aggregate pipeline progress.
type Progress struct {
	State  GlobalState
	Stages []stage.Progress
	// Overall is the mean of the stage fractions. It never decreases.
	Overall float64
}

// Snapshot is everything a status view needs, copied out of the manager.
type Snapshot struct {
	SessionID string
	Progress  Progress
	Budget    BudgetView
	Assets    []asset.Record
	// LazyPending counts skipped assets with a lazy load queued or running.
	LazyPending int
}

// Progress returns per-stage counts and the overall fraction.
func (m *Manager) Progress() Progress {
	total := m.catalog.Len()
	stages := make([]stage.Progress, 0, 3)
	var sum float64
	for _, q := range m.queues() {
		var p stage.Progress
		if m.state == Uninitialized {
			p = q.view(total)
		} else {
			p = q.progress(total)
		}
		stages = append(stages, p)
		sum += p.Fraction
	}
	overall := sum / float64(len(stages))
	if m.state == Ready {
		overall = 1
	}
	return Progress{State: m.state, Stages: stages, Overall: overall}
}

// Snapshot copies the manager state for reporting.
func (m *Manager) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:   m.opts.SessionID,
		Progress:    m.Progress(),
		Budget:      m.Budget(),
		Assets:      make([]asset.Record, 0, m.catalog.Len()),
		LazyPending: len(m.lazyRequested),
	}
	for i := 0; i < m.catalog.Len(); i++ {
		snap.Assets = append(snap.Assets, m.catalog.At(i).Snapshot())
	}
	return snap
}
