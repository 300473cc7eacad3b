package pipeline

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"assetprep/internal/asset"
	"assetprep/internal/materialize"
	"assetprep/internal/media"
	"assetprep/internal/workerpool"
)

const mib = 1 << 20

// animInfo describes an animation of frames w x h frames. Ten 1024x1024
// frames estimate to 40 MiB.
func animInfo(frames, w, h int) media.Info {
	return media.Info{Kind: asset.KindAnimation, Format: "png", Width: w, Height: h, Frames: make([]string, frames)}
}

func imageInfo(w, h int) media.Info {
	return media.Info{Kind: asset.KindStaticImage, Format: "png", Width: w, Height: h, Frames: []string{"img.png"}}
}

// fakeProber answers by source path. Unknown paths fail like a missing file.
type fakeProber struct {
	infos map[string]media.Info
	delay map[string]time.Duration
}

func (p *fakeProber) Probe(ctx context.Context, rec asset.Record) (media.Info, error) {
	if d := p.delay[rec.SourcePath]; d > 0 {
		time.Sleep(d)
	}
	info, ok := p.infos[rec.SourcePath]
	if !ok {
		return media.Info{}, errors.New("stat " + rec.SourcePath + ": no such file or directory")
	}
	return info, nil
}

type fakeEngine struct {
	dir string

	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (e *fakeEngine) CompressedPath(rec asset.Record) string {
	return filepath.Join(e.dir, rec.ID+".fpk")
}

func (e *fakeEngine) Compress(ctx context.Context, rec asset.Record, progress *workerpool.Progress) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, rec.ID)
	fail := e.fail[rec.ID]
	e.mu.Unlock()
	progress.Set(0.5)
	if fail {
		return "", errors.New("encoder crashed")
	}
	return e.CompressedPath(rec), nil
}

func (e *fakeEngine) called(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.calls {
		if c == id {
			return true
		}
	}
	return false
}

// fakeMaterializer builds tiny resources shaped like the record.
type fakeMaterializer struct {
	mu    sync.Mutex
	fail  map[string]bool
	loads map[string]int
}

func (f *fakeMaterializer) Load(ctx context.Context, rec asset.Record, progress *workerpool.Progress) (asset.Resource, error) {
	f.mu.Lock()
	if f.loads == nil {
		f.loads = make(map[string]int)
	}
	f.loads[rec.ID]++
	fail := f.fail[rec.ID]
	f.mu.Unlock()
	if fail {
		return nil, errors.New("texture upload failed")
	}
	tile := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if rec.Kind == asset.KindStaticImage {
		return materialize.NewImage(tile), nil
	}
	frames := make([]image.Image, max(rec.FrameCount, 1))
	for i := range frames {
		frames[i] = tile
	}
	return materialize.NewAnimation(frames, rec.Options.FrameRate), nil
}

func (f *fakeMaterializer) setFail(id string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = make(map[string]bool)
	}
	f.fail[id] = fail
}

func (f *fakeMaterializer) loadCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[id]
}

type harness struct {
	t       *testing.T
	m       *Manager
	prober  *fakeProber
	engine  *fakeEngine
	loader  *fakeMaterializer
	options Options
}

func newHarness(t *testing.T, ceiling float64, threads int) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		m:      NewManager(),
		prober: &fakeProber{infos: map[string]media.Info{}, delay: map[string]time.Duration{}},
		engine: &fakeEngine{dir: t.TempDir(), fail: map[string]bool{}},
		loader: &fakeMaterializer{},
	}
	h.options = Options{
		MaxVRAMBytes: ceiling,
		NumThreads:   threads,
		Defaults:     asset.LoadOptions{UseCompression: false, FrameRate: 30, NumThreads: 1, Preload: asset.PreloadAuto},
		Engine:       h.engine,
		Materializer: h.loader,
		Prober:       h.prober,
	}
	if err := h.m.Setup(h.options); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { _ = h.m.Close() })
	return h
}

// add registers id with opts at a fake path answered with info.
func (h *harness) add(id string, info media.Info, opts asset.LoadOptions) {
	h.t.Helper()
	path := "/assets/" + id
	h.prober.infos[path] = info
	if err := h.m.AddAssetWithOptions(id, path, opts); err != nil {
		h.t.Fatalf("AddAssetWithOptions(%s): %v", id, err)
	}
}

func (h *harness) auto() asset.LoadOptions { return h.options.Defaults }

func (h *harness) start() {
	h.t.Helper()
	if err := h.m.StartLoading(); err != nil {
		h.t.Fatalf("StartLoading: %v", err)
	}
}

// settle waits until every in-flight task has finished so the next Update
// observes all of them.
func settle(t *testing.T, m *Manager) {
	t.Helper()
	for _, q := range []*stageQueue{m.check, m.compress, m.preload, m.lazy} {
		for _, task := range q.inFlight {
			select {
			case <-task.done:
			case <-time.After(5 * time.Second):
				t.Fatalf("task %s on %s never finished", task.id, q.name)
			}
		}
	}
}

func inFlightTotal(m *Manager) int {
	return len(m.check.inFlight) + len(m.compress.inFlight) + len(m.preload.inFlight) + len(m.lazy.inFlight)
}

// tickUntilReady runs settled ticks until Ready and returns the tick count.
func (h *harness) tickUntilReady(maxTicks int) int {
	h.t.Helper()
	for tick := 1; tick <= maxTicks; tick++ {
		h.m.Update()
		if n := inFlightTotal(h.m); n > h.m.pool.Size() {
			h.t.Fatalf("tick %d: %d tasks in flight on a pool of %d", tick, n, h.m.pool.Size())
		}
		if h.m.State() == Ready {
			return tick
		}
		settle(h.t, h.m)
	}
	h.t.Fatalf("not ready after %d ticks, state %s", maxTicks, h.m.State())
	return 0
}

// runFree ticks without settling so completions land in arbitrary order.
func (h *harness) runFree(timeout time.Duration) {
	h.t.Helper()
	deadline := time.Now().Add(timeout)
	for h.m.State() != Ready {
		if time.Now().After(deadline) {
			h.t.Fatalf("not ready within %s, state %s", timeout, h.m.State())
		}
		h.m.Update()
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) record(id string) asset.Record {
	h.t.Helper()
	rec, ok := h.m.Record(id)
	if !ok {
		h.t.Fatalf("no record for %s", id)
	}
	return rec
}
