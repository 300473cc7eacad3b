package asset

// Record is the catalog entry for one asset. Only the coordinator mutates a
// record; workers receive copies.
type Record struct {
	ID         string
	Kind       Kind
	SourcePath string
	Options    LoadOptions

	// Filled in by the check stage.
	EstimatedSizeBytes float64
	FrameCount         int
	Width              int
	Height             int
	NeedsCompression   bool

	UseCompression bool
	CompressedPath string
	// Fallback is set when compression failed and the source is used as is.
	Fallback bool

	IsPreloaded bool
	State       State

	// Err is the check failure that excluded the asset from later stages.
	Err error
	// Warning is a non-fatal stage error: a compression fallback or a failed
	// materialization after admission.
	Warning error

	order int
}

// Order is the zero-based registration position.
func (r *Record) Order() int { return r.order }

// Failed reports whether the check stage excluded the asset.
func (r *Record) Failed() bool {
	return r.State == StateChecked && r.Err != nil
}

// Terminal reports whether the asset has left the pipeline.
func (r *Record) Terminal() bool {
	return r.State.Terminal() || r.Failed()
}

// LoadPath returns the path the materializer should read: the compressed
// variant when one is usable, otherwise the source.
func (r *Record) LoadPath() string {
	if r.UseCompression && !r.Fallback && r.CompressedPath != "" {
		return r.CompressedPath
	}
	return r.SourcePath
}

// Apply advances the record on ev and updates the flags tied to the event.
func (r *Record) Apply(ev Event) error {
	next, err := Transition(r.State, ev)
	if err != nil {
		return err
	}
	switch ev.Type {
	case EventCheckFailed:
		r.Err = ev.Err
	case EventCompressFailed:
		r.Fallback = true
		r.UseCompression = false
		r.CompressedPath = ""
		r.Warning = ev.Err
	case EventPreloadFinished:
		r.IsPreloaded = true
	case EventPreloadFailed:
		r.Warning = ev.Err
	}
	r.State = next
	return nil
}

// Snapshot returns a copy safe to hand outside the coordinator.
func (r *Record) Snapshot() Record {
	return *r
}
