package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"assetprep/internal/asset"
	"assetprep/internal/fileutil"
	"assetprep/internal/logging"
	"assetprep/internal/media"
	"assetprep/internal/services"
	"assetprep/internal/stage"
	"assetprep/internal/workerpool"
)

// bytesPerPixel is the resident cost of one decoded RGBA pixel.
const bytesPerPixel = 4

// EstimateBytes is the resident size of info once every frame is decoded.
func EstimateBytes(info media.Info) float64 {
	return float64(info.FrameCount()) * float64(info.Width) * float64(info.Height) * bytesPerPixel
}

// Update polls finished tasks, dispatches new ones while the pool has free
// slots, and advances the global state. It never blocks.
func (m *Manager) Update() {
	if m.closed || m.pool == nil {
		return
	}
	for _, q := range m.queues() {
		q.pollAll()
	}
	m.lazy.pollAll()

	m.admit()
	m.dispatchPreload()
	m.dispatchCompress()
	m.dispatchCheck()
	m.dispatchLazy()

	m.advance()
	for _, q := range m.queues() {
		m.opts.Metrics.SetQueue(string(q.name), q.waiting+len(q.pending), len(q.inFlight))
	}
}

// UpdateDelta runs Update and then moves every materialized animation's
// playhead by dt, backwards when PlayReverse is set.
func (m *Manager) UpdateDelta(dt time.Duration) {
	m.Update()
	if m.opts.PlayReverse {
		dt = -dt
	}
	for _, id := range m.catalog.AnimationIDs() {
		res, err := m.catalog.Resource(id)
		if err != nil {
			continue
		}
		if anim, ok := res.(asset.Animation); ok {
			anim.Advance(dt)
		}
	}
}

func (m *Manager) queues() []*stageQueue {
	return []*stageQueue{m.check, m.compress, m.preload}
}

func (m *Manager) queue(name stage.Name) *stageQueue {
	switch name {
	case stage.Check:
		return m.check
	case stage.Compress:
		return m.compress
	case stage.Preload:
		return m.preload
	default:
		return m.lazy
	}
}

// advance passes through every drained stage on this tick.
func (m *Manager) advance() {
	for {
		name, ok := m.state.stage()
		if !ok || !m.queue(name).drained() {
			return
		}
		m.setState(nextGlobalState(m.state, eventStageDrained))
	}
}

func (m *Manager) assetContext(id string, name stage.Name) context.Context {
	return logging.WithAsset(m.ctx, id, string(name))
}

func (m *Manager) assetLogger(id string, name stage.Name) *slog.Logger {
	return logging.WithContext(m.assetContext(id, name), m.logger)
}

// submit runs task for id on the pool and tracks it on q. apply receives
// the result on the coordinator once the task has finished.
func submit[T any](m *Manager, q *stageQueue, id string, task workerpool.Task[T], apply func(T, error)) bool {
	fut, err := workerpool.Submit(m.assetContext(id, q.name), m.pool, id, task)
	if err != nil {
		return false
	}
	started := time.Now()
	q.inFlight = append(q.inFlight, &inflightTask{
		id:       id,
		started:  started,
		progress: fut.Progress,
		done:     fut.Done(),
		poll: func() bool {
			result, err, ok := fut.Poll()
			if !ok {
				return false
			}
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			m.opts.Metrics.ObserveCompletion(string(q.name), outcome, time.Since(started).Seconds())
			apply(result, err)
			return true
		},
	})
	return true
}

type checkResult struct {
	info          media.Info
	variant       string
	variantExists bool
}

func (m *Manager) dispatchCheck() {
	for m.pool.Available() > 0 {
		id, ok := m.check.pop()
		if !ok {
			return
		}
		rec, _ := m.catalog.Lookup(id)
		snapshot := rec.Snapshot()
		prober, engine := m.opts.Prober, m.opts.Engine
		task := func(ctx context.Context, progress *workerpool.Progress) (checkResult, error) {
			info, err := prober.Probe(ctx, snapshot)
			if err != nil {
				return checkResult{}, err
			}
			out := checkResult{info: info}
			if engine != nil && info.Kind == asset.KindAnimation && snapshot.UseCompression {
				probed := snapshot
				probed.Kind = info.Kind
				out.variant = engine.CompressedPath(probed)
				out.variantExists = fileutil.Exists(out.variant)
			}
			return out, nil
		}
		if !submit(m, m.check, id, task, func(res checkResult, err error) { m.finishCheck(id, res, err) }) {
			m.check.pending = append([]string{id}, m.check.pending...)
			return
		}
	}
}

func (m *Manager) finishCheck(id string, res checkResult, err error) {
	rec, _ := m.catalog.Lookup(id)
	logger := m.assetLogger(id, stage.Check)
	m.check.resolved++

	if err == nil && rec.Kind != asset.KindUnknown && rec.Kind != res.info.Kind {
		err = services.Wrap(services.ErrValidation, "check", "classify",
			"Source is a "+res.info.Kind.String()+" but the asset was registered as a "+rec.Kind.String(), nil)
	}
	if err != nil {
		if !errors.Is(err, services.ErrValidation) && !errors.Is(err, services.ErrNotFound) {
			err = services.Wrap(services.ErrNotFound, "check", "probe source", "Asset source is unreadable", err)
		}
		m.mustApply(rec, asset.Event{Type: asset.EventCheckFailed, Err: err})
		m.compress.resolved++
		m.preload.resolved++
		logging.WarnWithContext(logger, "asset check failed", "check_failed",
			logging.String("path", rec.SourcePath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the asset path exists and is readable"),
			logging.String(logging.FieldImpact, "asset excluded from compression and preload"))
		return
	}

	info := res.info
	rec.Kind = info.Kind
	rec.FrameCount = info.FrameCount()
	rec.Width = info.Width
	rec.Height = info.Height
	rec.EstimatedSizeBytes = EstimateBytes(info)
	if rec.Kind != asset.KindAnimation || m.opts.Engine == nil {
		rec.UseCompression = false
	}
	if rec.UseCompression && res.variantExists {
		rec.CompressedPath = res.variant
	}
	rec.NeedsCompression = rec.UseCompression && !res.variantExists
	m.mustApply(rec, asset.Event{Type: asset.EventCheckSucceeded})
	logger.Debug("asset checked",
		logging.String("kind", rec.Kind.String()),
		logging.Int("frames", rec.FrameCount),
		logging.Int("width", rec.Width),
		logging.Int("height", rec.Height),
		logging.Megabytes("estimated_mb", rec.EstimatedSizeBytes),
		logging.Bool("needs_compression", rec.NeedsCompression))

	switch {
	case rec.Kind == asset.KindStaticImage:
		m.compress.resolved++
		m.queuePreload(rec)
	case rec.NeedsCompression:
		m.compress.push(id)
	default:
		m.mustApply(rec, asset.Event{Type: asset.EventCompressBypassed})
		m.compress.resolved++
		m.queuePreload(rec)
	}
}

func (m *Manager) dispatchCompress() {
	for m.pool.Available() > 0 {
		id, ok := m.compress.pop()
		if !ok {
			return
		}
		rec, _ := m.catalog.Lookup(id)
		engine := m.opts.Engine
		snapshot := rec.Snapshot()
		task := func(ctx context.Context, progress *workerpool.Progress) (string, error) {
			return engine.Compress(ctx, snapshot, progress)
		}
		if !submit(m, m.compress, id, task, func(path string, err error) { m.finishCompress(id, path, err) }) {
			m.compress.pending = append([]string{id}, m.compress.pending...)
			return
		}
		m.mustApply(rec, asset.Event{Type: asset.EventCompressStarted})
	}
}

func (m *Manager) finishCompress(id, path string, err error) {
	rec, _ := m.catalog.Lookup(id)
	logger := m.assetLogger(id, stage.Compress)
	m.compress.resolved++
	if err != nil {
		m.mustApply(rec, asset.Event{Type: asset.EventCompressFailed, Err: err})
		logging.WarnWithContext(logger, "compression failed, using uncompressed source", "compress_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the compressed output directory"),
			logging.String(logging.FieldImpact, "asset loads from its uncompressed source"))
	} else {
		rec.CompressedPath = path
		m.mustApply(rec, asset.Event{Type: asset.EventCompressFinished})
		logger.Debug("asset compressed", logging.String("path", path))
	}
	m.queuePreload(rec)
}

func (m *Manager) queuePreload(rec *asset.Record) {
	m.mustApply(rec, asset.Event{Type: asset.EventPreloadQueued})
	m.preload.waiting++
}

// admit decides admission for arrivals in registration order. It stops at
// the first asset still upstream so decisions never depend on which task
// finished first.
func (m *Manager) admit() {
	for m.cursor < m.catalog.Len() {
		rec := m.catalog.At(m.cursor)
		if rec.Failed() {
			m.cursor++
			continue
		}
		if rec.State != asset.StatePendingPreload {
			return
		}
		m.cursor++
		m.preload.waiting--

		pref := rec.Options.Preload
		if rec.Kind == asset.KindStaticImage {
			pref = asset.PreloadYes
		}
		decision := m.budget.TryAdmit(rec.EstimatedSizeBytes, pref)
		m.opts.Metrics.ObserveAdmission(string(decision.Reason), decision.Total)
		result := "denied"
		if decision.Granted {
			result = "granted"
		}
		attrs := logging.DecisionAttrs("preload_admission", result, string(decision.Reason))
		attrs = append(attrs,
			logging.Megabytes("estimated_mb", rec.EstimatedSizeBytes),
			logging.Megabytes("committed_mb", decision.Total),
			logging.Megabytes("ceiling_mb", m.budget.Ceiling()))
		if decision.Granted && decision.Total > m.budget.Ceiling() {
			attrs = append(attrs, logging.Alert("budget_overcommitted"))
		}
		m.assetLogger(rec.ID, stage.Preload).Info("preload admission", logging.Args(attrs...)...)

		if decision.Granted {
			m.preload.push(rec.ID)
			continue
		}
		m.mustApply(rec, asset.Event{Type: asset.EventPreloadDenied})
		m.preload.resolved++
	}
}

func (m *Manager) dispatchPreload() {
	for m.pool.Available() > 0 {
		id, ok := m.preload.pop()
		if !ok {
			return
		}
		rec, _ := m.catalog.Lookup(id)
		if !submit(m, m.preload, id, m.loadTask(rec), func(res asset.Resource, err error) { m.finishPreload(id, res, err) }) {
			m.preload.pending = append([]string{id}, m.preload.pending...)
			return
		}
		m.mustApply(rec, asset.Event{Type: asset.EventPreloadStarted})
	}
}

func (m *Manager) loadTask(rec *asset.Record) workerpool.Task[asset.Resource] {
	materializer := m.opts.Materializer
	snapshot := rec.Snapshot()
	return func(ctx context.Context, progress *workerpool.Progress) (asset.Resource, error) {
		res, err := materializer.Load(ctx, snapshot, progress)
		if err == nil && res == nil {
			err = services.Wrap(services.ErrValidation, "preload", "materialize", "Materializer returned no resource", nil)
		}
		return res, err
	}
}

func (m *Manager) finishPreload(id string, res asset.Resource, err error) {
	rec, _ := m.catalog.Lookup(id)
	logger := m.assetLogger(id, stage.Preload)
	m.preload.resolved++
	if err != nil {
		m.mustApply(rec, asset.Event{Type: asset.EventPreloadFailed, Err: err})
		logging.WarnWithContext(logger, "preload failed, asset will load on first access", "preload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the asset frames"),
			logging.String(logging.FieldImpact, "asset is skipped and retried lazily"))
		return
	}
	m.catalog.SetResource(id, res)
	m.mustApply(rec, asset.Event{Type: asset.EventPreloadFinished})
	logger.Debug("asset preloaded", logging.Int64("resident_bytes", res.SizeBytes()))
}

func (m *Manager) dispatchLazy() {
	for m.pool.Available() > 0 {
		id, ok := m.lazy.pop()
		if !ok {
			return
		}
		rec, _ := m.catalog.Lookup(id)
		if !submit(m, m.lazy, id, m.loadTask(rec), func(res asset.Resource, err error) { m.finishLazy(id, res, err) }) {
			m.lazy.pending = append([]string{id}, m.lazy.pending...)
			return
		}
	}
}

func (m *Manager) finishLazy(id string, res asset.Resource, err error) {
	delete(m.lazyRequested, id)
	logger := m.assetLogger(id, stage.Lazy)
	if err != nil {
		m.opts.Metrics.ObserveLazyLoad("error")
		logging.WarnWithContext(logger, "lazy load failed", "lazy_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the asset frames"),
			logging.String(logging.FieldImpact, "resource stays unavailable until the next request"))
		return
	}
	m.opts.Metrics.ObserveLazyLoad("ok")
	m.catalog.SetResource(id, res)
	logger.Debug("asset loaded on demand", logging.Int64("resident_bytes", res.SizeBytes()))
}

// mustApply advances rec and logs any rejected event.
func (m *Manager) mustApply(rec *asset.Record, ev asset.Event) {
	if err := rec.Apply(ev); err != nil {
		logging.ErrorWithContext(m.assetLogger(rec.ID, ""), "illegal asset transition", "transition_rejected",
			logging.Error(err),
			logging.String("state", string(rec.State)))
	}
}
