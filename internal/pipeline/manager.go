package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"assetprep/internal/asset"
	"assetprep/internal/budget"
	"assetprep/internal/discovery"
	"assetprep/internal/logging"
	"assetprep/internal/materialize"
	"assetprep/internal/metrics"
	"assetprep/internal/services"
	"assetprep/internal/stage"
	"assetprep/internal/workerpool"
)

var (
	ErrNotSetup       = errors.New("manager is not set up")
	ErrAlreadyStarted = errors.New("loading has already started")
	ErrClosed         = errors.New("manager is closed")
	ErrNotAnimation   = errors.New("asset is not an animation")
)

// Options configures a Manager. Zero values pick the defaults noted per field.
type Options struct {
	// MaxVRAMBytes is the preload budget ceiling.
	MaxVRAMBytes float64
	// NumThreads sizes the shared worker pool. Zero means runtime.NumCPU().
	NumThreads int
	// PlayReverse plays every animation backwards in UpdateDelta.
	PlayReverse bool
	// Defaults applies to AddAsset, AddPath and SetupFolder registrations.
	// The zero value means asset.DefaultLoadOptions().
	Defaults asset.LoadOptions
	// Overrides replaces Defaults for the listed IDs.
	Overrides map[string]asset.LoadOptions
	// Engine produces compressed variants. Nil disables compression.
	Engine CompressionEngine
	// Materializer defaults to materialize.Loader.
	Materializer ResourceMaterializer
	// Prober defaults to MediaProber.
	Prober    Prober
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	SessionID string
}

// Manager is the public facade over the catalog, the budget, the three
// stages, and the global state.
type Manager struct {
	opts    Options
	logger  *slog.Logger
	ctx     context.Context
	catalog *asset.Catalog
	budget  *budget.Allocator
	pool    *workerpool.Pool

	state   GlobalState
	isSetup bool
	closed  bool

	check    *stageQueue
	compress *stageQueue
	preload  *stageQueue
	lazy     *stageQueue
	// cursor is the registration index of the next asset awaiting admission.
	cursor int
	// lazyRequested marks skipped assets with a queued or running lazy load.
	lazyRequested map[string]bool
}

// NewManager returns an Uninitialized manager. Call Setup before
// registering assets.
func NewManager() *Manager {
	return &Manager{
		logger:        logging.NewNop(),
		ctx:           context.Background(),
		catalog:       asset.NewCatalog(),
		check:         newStageQueue(stage.Check),
		compress:      newStageQueue(stage.Compress),
		preload:       newStageQueue(stage.Preload),
		lazy:          newStageQueue(stage.Lazy),
		lazyRequested: make(map[string]bool),
	}
}

// Setup applies opts. It may be called again to reconfigure until loading
// starts.
func (m *Manager) Setup(opts Options) error {
	if m.closed {
		return ErrClosed
	}
	if m.catalog.Sealed() {
		return ErrAlreadyStarted
	}
	if opts.MaxVRAMBytes < 0 {
		return services.Wrap(services.ErrConfiguration, "setup", "validate options",
			"VRAM ceiling must not be negative", nil)
	}
	if opts.NumThreads <= 0 {
		opts.NumThreads = runtime.NumCPU()
	}
	if opts.Defaults == (asset.LoadOptions{}) {
		opts.Defaults = asset.DefaultLoadOptions()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Prober == nil {
		opts.Prober = MediaProber{}
	}
	if opts.Materializer == nil {
		opts.Materializer = materialize.NewLoader(opts.Logger)
	}
	m.opts = opts
	m.ctx = services.WithSessionID(context.Background(), opts.SessionID)
	m.logger = logging.WithContext(m.ctx, logging.NewComponentLogger(opts.Logger, "pipeline"))
	m.budget = budget.New(opts.MaxVRAMBytes)
	m.isSetup = true
	opts.Metrics.SetCeiling(m.budget.Ceiling())
	opts.Metrics.SetGlobalState(int(m.state))
	m.logger.Debug("manager configured",
		logging.Megabytes("max_vram_mb", opts.MaxVRAMBytes),
		logging.Int("num_threads", opts.NumThreads),
		logging.Bool("compression", opts.Engine != nil),
		logging.Bool("play_reverse", opts.PlayReverse))
	return nil
}

// SetupFolder runs Setup and registers every asset discovered in folder
// with opts.Defaults.
func (m *Manager) SetupFolder(folder string, opts Options) error {
	if err := m.Setup(opts); err != nil {
		return err
	}
	entries, err := discovery.Scan(folder)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "setup", "scan asset folder",
			"Asset folder could not be scanned", err)
	}
	for _, entry := range entries {
		if _, err := m.catalog.Register(entry.ID, entry.Path, entry.Kind, m.optionsFor(entry.ID)); err != nil {
			return err
		}
	}
	m.logger.Info("asset folder scanned",
		logging.String("folder", folder),
		logging.Int("assets", len(entries)))
	return nil
}

// AddAsset registers id at path with its override or the default load
// options.
func (m *Manager) AddAsset(id, path string) error {
	return m.AddAssetWithOptions(id, path, m.optionsFor(id))
}

func (m *Manager) optionsFor(id string) asset.LoadOptions {
	if opts, ok := m.opts.Overrides[id]; ok {
		return opts
	}
	return m.opts.Defaults
}

// AddAssetWithOptions registers id at path with opts. The kind is resolved
// by the check stage.
func (m *Manager) AddAssetWithOptions(id, path string, opts asset.LoadOptions) error {
	if err := m.mutable(); err != nil {
		return err
	}
	_, err := m.catalog.Register(id, path, asset.KindUnknown, opts)
	return err
}

// AddPath registers path under an ID derived from its base name and returns
// that ID.
func (m *Manager) AddPath(path string) (string, error) {
	id := discovery.DeriveID(path)
	if err := m.AddAsset(id, path); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) mutable() error {
	switch {
	case m.closed:
		return ErrClosed
	case !m.isSetup:
		return ErrNotSetup
	case m.catalog.Sealed():
		return asset.ErrCatalogSealed
	}
	return nil
}

// StartLoading seals the catalog, queues every asset for the check stage in
// registration order, and enters CheckingAssets. Work starts on the next
// Update.
func (m *Manager) StartLoading() error {
	switch {
	case m.closed:
		return ErrClosed
	case !m.isSetup:
		return ErrNotSetup
	case m.catalog.Sealed():
		return ErrAlreadyStarted
	}
	m.catalog.Seal()
	m.pool = workerpool.New(m.opts.NumThreads)
	for _, id := range m.catalog.IDs() {
		m.check.push(id)
	}
	m.setState(nextGlobalState(m.state, eventStartLoading))
	m.logger.Info("loading started",
		logging.Int("assets", m.catalog.Len()),
		logging.Int("workers", m.pool.Size()),
		logging.Megabytes("budget_mb", m.budget.Ceiling()))
	return nil
}

func (m *Manager) setState(next GlobalState) {
	if next == m.state {
		return
	}
	prev := m.state
	m.state = next
	m.opts.Metrics.SetGlobalState(int(next))
	m.logger.Info("pipeline state changed",
		logging.String("from", prev.String()),
		logging.String("to", next.String()),
		logging.String(logging.FieldEventType, "global_state"))
}

// Close stops dispatching and waits for running tasks to finish. Their
// results are discarded. Close is idempotent.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if m.pool != nil {
		m.pool.Close()
	}
	m.logger.Debug("manager closed", logging.String("state", m.state.String()))
	return nil
}

// State returns the global state.
func (m *Manager) State() GlobalState { return m.state }

// AnimationIDs returns the IDs currently classified as animations.
func (m *Manager) AnimationIDs() []string { return m.catalog.AnimationIDs() }

// StaticImageIDs returns the IDs currently classified as static images.
func (m *Manager) StaticImageIDs() []string { return m.catalog.StaticImageIDs() }

// AssetKind returns the kind of id. Assets registered without a kind report
// KindUnknown until the check stage classifies them.
func (m *Manager) AssetKind(id string) (asset.Kind, error) {
	rec, ok := m.catalog.Lookup(id)
	if !ok {
		return asset.KindUnknown, fmt.Errorf("%w: %q", asset.ErrUnknownAsset, id)
	}
	return rec.Kind, nil
}

// Record returns a copy of id's record.
func (m *Manager) Record(id string) (asset.Record, bool) {
	rec, ok := m.catalog.Lookup(id)
	if !ok {
		return asset.Record{}, false
	}
	return rec.Snapshot(), true
}

// Resource returns id's resource. Until it exists the error wraps
// asset.ErrNotReady and asset.Null is returned. Asking for a skipped asset
// queues its lazy load, which a later Update services.
func (m *Manager) Resource(id string) (asset.Resource, error) {
	res, err := m.catalog.Resource(id)
	if err == nil || !errors.Is(err, asset.ErrNotReady) {
		return res, err
	}
	rec, _ := m.catalog.Lookup(id)
	switch {
	case rec.Failed():
		return asset.Null, fmt.Errorf("%w: %q failed its check: %w", asset.ErrNotReady, id, rec.Err)
	case rec.State == asset.StateSkipped && !m.closed && !m.lazyRequested[id]:
		m.lazyRequested[id] = true
		m.lazy.push(id)
		logging.WithContext(logging.WithAsset(m.ctx, id, string(stage.Lazy)), m.logger).Debug(
			"lazy load requested", logging.String(logging.FieldEventType, "lazy_requested"))
	}
	return asset.Null, err
}

// Animation returns id's animation resource. Static images and errors
// return asset.Null.
func (m *Manager) Animation(id string) (asset.Animation, error) {
	res, err := m.Resource(id)
	if err != nil {
		return asset.Null, err
	}
	anim, ok := res.(asset.Animation)
	if !ok {
		return asset.Null, fmt.Errorf("%w: %q is a %s", ErrNotAnimation, id, res.Kind())
	}
	return anim, nil
}

// Budget returns the ceiling, the committed total, and the admission counts.
func (m *Manager) Budget() BudgetView {
	if m.budget == nil {
		return BudgetView{}
	}
	return BudgetView{
		Ceiling:   m.budget.Ceiling(),
		Committed: m.budget.Total(),
		Remaining: m.budget.Remaining(),
		Admitted:  m.budget.Admitted(),
		Denied:    m.budget.Denied(),
	}
}
