package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"assetprep/internal/asset"
	"assetprep/internal/services"
	"assetprep/internal/stage"
)

func TestNextGlobalState(t *testing.T) {
	tests := []struct {
		name    string
		current GlobalState
		event   globalEvent
		want    GlobalState
	}{
		{name: "start loading", current: Uninitialized, event: eventStartLoading, want: CheckingAssets},
		{name: "start twice", current: CompressingAssets, event: eventStartLoading, want: CompressingAssets},
		{name: "drain before start", current: Uninitialized, event: eventStageDrained, want: Uninitialized},
		{name: "check drained", current: CheckingAssets, event: eventStageDrained, want: CompressingAssets},
		{name: "compress drained", current: CompressingAssets, event: eventStageDrained, want: PreloadingAssets},
		{name: "preload drained", current: PreloadingAssets, event: eventStageDrained, want: Ready},
		{name: "ready is terminal", current: Ready, event: eventStageDrained, want: Ready},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextGlobalState(tt.current, tt.event)
			if got != tt.want {
				t.Fatalf("nextGlobalState(%s) = %s, want %s", tt.current, got, tt.want)
			}
			if got < tt.current {
				t.Fatalf("state moved backwards: %s -> %s", tt.current, got)
			}
		})
	}
}

func TestGlobalStateStringRoundTrip(t *testing.T) {
	for s := Uninitialized; s <= Ready; s++ {
		parsed, err := ParseGlobalState(s.String())
		if err != nil || parsed != s {
			t.Fatalf("ParseGlobalState(%q) = %v, %v", s.String(), parsed, err)
		}
	}
	if _, err := ParseGlobalState("warming_up"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestAdmissionFollowsRegistrationOrder(t *testing.T) {
	for run := 0; run < 10; run++ {
		t.Run(fmt.Sprintf("run%d", run), func(t *testing.T) {
			h := newHarness(t, 100*mib, 3)
			for _, id := range []string{"a", "b", "c"} {
				h.add(id, animInfo(10, 1024, 1024), h.auto())
			}
			// Later assets finish their check first.
			h.prober.delay["/assets/a"] = 6 * time.Millisecond
			h.prober.delay["/assets/b"] = 3 * time.Millisecond
			h.start()
			h.runFree(5 * time.Second)

			for id, want := range map[string]asset.State{
				"a": asset.StatePreloaded,
				"b": asset.StatePreloaded,
				"c": asset.StateSkipped,
			} {
				rec := h.record(id)
				if rec.EstimatedSizeBytes != 40*mib {
					t.Fatalf("%s estimate = %v, want 40 MiB", id, rec.EstimatedSizeBytes)
				}
				if rec.State != want {
					t.Fatalf("%s state = %s, want %s", id, rec.State, want)
				}
			}
			if got := h.m.Budget().Committed; got != 80*mib {
				t.Fatalf("committed = %v, want 80 MiB", got)
			}
		})
	}
}

func TestBudgetNeverExceededByAutomaticAdmissions(t *testing.T) {
	const ceiling = 64 * mib
	h := newHarness(t, ceiling, 4)
	for i := 0; i < 12; i++ {
		// 4, 8, 12, 16 MiB animations in rotation.
		h.add(fmt.Sprintf("anim%02d", i), animInfo(1+i%4, 1024, 1024), h.auto())
	}
	h.start()
	deadline := time.Now().Add(5 * time.Second)
	for h.m.State() != Ready {
		if time.Now().After(deadline) {
			t.Fatalf("not ready, state %s", h.m.State())
		}
		h.m.Update()
		var resident float64
		for _, rec := range h.m.Snapshot().Assets {
			if rec.State == asset.StatePreloaded || rec.State == asset.StatePreloading {
				resident += rec.EstimatedSizeBytes
			}
		}
		if resident > ceiling || h.m.Budget().Committed > ceiling {
			t.Fatalf("budget exceeded: resident=%v committed=%v", resident, h.m.Budget().Committed)
		}
		time.Sleep(time.Millisecond)
	}
	if h.m.Budget().Admitted == 0 || h.m.Budget().Denied == 0 {
		t.Fatalf("expected both admissions and denials: %+v", h.m.Budget())
	}
}

func TestStaticImageOverridesBudget(t *testing.T) {
	h := newHarness(t, 100*mib, 2)
	h.add("backdrop", imageInfo(8192, 8192), asset.LoadOptions{Preload: asset.PreloadNo, NumThreads: 1})
	h.start()
	h.tickUntilReady(10)

	rec := h.record("backdrop")
	if rec.Kind != asset.KindStaticImage || rec.State != asset.StatePreloaded || !rec.IsPreloaded {
		t.Fatalf("static image not preloaded: %+v", rec)
	}
	if rec.EstimatedSizeBytes <= 100*mib {
		t.Fatalf("test image should exceed the ceiling, estimate %v", rec.EstimatedSizeBytes)
	}
	if got := h.m.Budget().Committed; got != rec.EstimatedSizeBytes {
		t.Fatalf("committed = %v, want %v", got, rec.EstimatedSizeBytes)
	}
	if ids := h.m.StaticImageIDs(); len(ids) != 1 || ids[0] != "backdrop" {
		t.Fatalf("StaticImageIDs = %v", ids)
	}
	if h.engine.called("backdrop") {
		t.Fatal("static images must not be compressed")
	}
	if _, err := h.m.Resource("backdrop"); err != nil {
		t.Fatalf("Resource: %v", err)
	}
}

func TestCheckFailureIsolated(t *testing.T) {
	h := newHarness(t, 100*mib, 2)
	opts := h.auto()
	opts.UseCompression = true
	if err := h.m.AddAssetWithOptions("broken", "/nowhere/broken", opts); err != nil {
		t.Fatal(err)
	}
	h.add("valid", animInfo(2, 16, 16), opts)
	h.start()
	h.tickUntilReady(20)

	broken := h.record("broken")
	if !broken.Failed() || broken.State != asset.StateChecked {
		t.Fatalf("broken asset should be error-flagged in Checked: %+v", broken)
	}
	if !errors.Is(broken.Err, services.ErrNotFound) {
		t.Fatalf("broken.Err = %v", broken.Err)
	}
	if h.engine.called("broken") || h.loader.loadCount("broken") != 0 {
		t.Fatal("failed asset reached a later stage")
	}
	if res, err := h.m.Resource("broken"); !errors.Is(err, asset.ErrNotReady) || res != asset.Null {
		t.Fatalf("Resource(broken) = %v, %v", res, err)
	}

	valid := h.record("valid")
	if valid.State != asset.StatePreloaded || valid.CompressedPath == "" {
		t.Fatalf("valid asset did not complete: %+v", valid)
	}
}

func TestTerminatesWithinTickBound(t *testing.T) {
	const assets, threads = 7, 2
	h := newHarness(t, 1<<40, threads)
	opts := h.auto()
	opts.UseCompression = true
	for i := 0; i < assets; i++ {
		h.add(fmt.Sprintf("a%d", i), animInfo(2, 8, 8), opts)
	}
	h.start()
	bound := 3*((assets+threads-1)/threads) + 3
	ticks := h.tickUntilReady(bound)
	t.Logf("ready after %d ticks (bound %d)", ticks, bound)
	for _, rec := range h.m.Snapshot().Assets {
		if !rec.Terminal() {
			t.Fatalf("%s not terminal: %s", rec.ID, rec.State)
		}
	}
}

func TestGlobalStateAndProgressMonotonic(t *testing.T) {
	h := newHarness(t, 10*mib, 3)
	opts := h.auto()
	opts.UseCompression = true
	for i := 0; i < 9; i++ {
		h.add(fmt.Sprintf("a%d", i), animInfo(3, 256, 256), opts)
	}
	h.add("logo", imageInfo(64, 64), h.auto())
	h.start()

	prevState := h.m.State()
	prevOverall := h.m.Progress().Overall
	prevStages := map[stage.Name]float64{}
	deadline := time.Now().Add(5 * time.Second)
	for h.m.State() != Ready {
		if time.Now().After(deadline) {
			t.Fatalf("not ready, state %s", h.m.State())
		}
		h.m.Update()
		p := h.m.Progress()
		if p.State < prevState {
			t.Fatalf("global state moved backwards: %s -> %s", prevState, p.State)
		}
		if p.Overall < prevOverall {
			t.Fatalf("overall progress decreased: %v -> %v", prevOverall, p.Overall)
		}
		for _, sp := range p.Stages {
			if sp.Fraction < prevStages[sp.Stage] {
				t.Fatalf("%s fraction decreased: %v -> %v", sp.Stage, prevStages[sp.Stage], sp.Fraction)
			}
			prevStages[sp.Stage] = sp.Fraction
		}
		prevState, prevOverall = p.State, p.Overall
		time.Sleep(time.Millisecond)
	}
	if got := h.m.Progress().Overall; got != 1 {
		t.Fatalf("overall at ready = %v", got)
	}
}

func TestUpdateAfterReadyIsNoop(t *testing.T) {
	h := newHarness(t, 100*mib, 2)
	h.add("a", animInfo(1, 8, 8), h.auto())
	h.add("b", imageInfo(8, 8), h.auto())
	h.start()
	h.tickUntilReady(10)

	before := h.m.Snapshot()
	for i := 0; i < 5; i++ {
		h.m.Update()
	}
	after := h.m.Snapshot()
	if after.Progress.State != Ready || after.Budget != before.Budget {
		t.Fatalf("state changed after ready: %+v -> %+v", before.Budget, after.Budget)
	}
	for i := range before.Assets {
		if before.Assets[i].State != after.Assets[i].State {
			t.Fatalf("%s moved from %s to %s", before.Assets[i].ID, before.Assets[i].State, after.Assets[i].State)
		}
	}
	if inFlightTotal(h.m) != 0 {
		t.Fatal("work dispatched after ready")
	}
}

func TestEmptyStagesPassThroughOnSameTick(t *testing.T) {
	h := newHarness(t, 100*mib, 2)
	h.add("logo", imageInfo(4, 4), h.auto())
	h.start()

	h.m.Update() // dispatch check
	settle(t, h.m)
	h.m.Update() // check done, nothing to compress, preload dispatched
	if h.m.State() != PreloadingAssets {
		t.Fatalf("state = %s, want preloading_assets on the same tick", h.m.State())
	}

	empty := newHarness(t, 0, 1)
	empty.start()
	empty.m.Update()
	if empty.m.State() != Ready {
		t.Fatalf("empty catalog state = %s, want ready after one tick", empty.m.State())
	}
}

func TestCompressionFailureFallsBack(t *testing.T) {
	h := newHarness(t, 100*mib, 2)
	opts := h.auto()
	opts.UseCompression = true
	h.add("ok", animInfo(2, 8, 8), opts)
	h.add("bad", animInfo(2, 8, 8), opts)
	h.engine.fail["bad"] = true
	h.start()
	h.tickUntilReady(20)

	bad := h.record("bad")
	if bad.State != asset.StatePreloaded || !bad.Fallback || bad.UseCompression || bad.Warning == nil {
		t.Fatalf("unexpected fallback record %+v", bad)
	}
	if bad.LoadPath() != bad.SourcePath {
		t.Fatalf("fallback should load from source, got %s", bad.LoadPath())
	}
	ok := h.record("ok")
	if ok.Fallback || ok.LoadPath() != h.engine.CompressedPath(ok) {
		t.Fatalf("unexpected compressed record %+v", ok)
	}
}

func TestExistingVariantSkipsCompression(t *testing.T) {
	h := newHarness(t, 100*mib, 2)
	opts := h.auto()
	opts.UseCompression = true
	h.add("walk", animInfo(2, 8, 8), opts)
	variant := h.engine.CompressedPath(asset.Record{ID: "walk"})
	if err := os.WriteFile(variant, []byte("archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.start()
	h.tickUntilReady(10)

	rec := h.record("walk")
	if rec.NeedsCompression || rec.CompressedPath != variant || rec.State != asset.StatePreloaded {
		t.Fatalf("unexpected record %+v", rec)
	}
	if h.engine.called("walk") {
		t.Fatal("existing variant was recompressed")
	}
}

func TestSkippedAssetsLoadLazily(t *testing.T) {
	h := newHarness(t, 100*mib, 2)
	declined := h.auto()
	declined.Preload = asset.PreloadNo
	h.add("declined", animInfo(3, 8, 8), declined)
	h.add("flaky", animInfo(3, 8, 8), h.auto())
	h.loader.setFail("flaky", true)
	h.start()
	h.tickUntilReady(10)

	if rec := h.record("declined"); rec.State != asset.StateSkipped || rec.IsPreloaded {
		t.Fatalf("declined asset: %+v", rec)
	}
	flaky := h.record("flaky")
	if flaky.State != asset.StateSkipped || flaky.Warning == nil {
		t.Fatalf("failed materialization should skip with a warning: %+v", flaky)
	}
	if h.m.Budget().Committed != flaky.EstimatedSizeBytes {
		t.Fatalf("granted budget is not released: committed %v", h.m.Budget().Committed)
	}

	h.loader.setFail("flaky", false)
	for _, id := range []string{"declined", "flaky"} {
		if res, err := h.m.Resource(id); !errors.Is(err, asset.ErrNotReady) || res != asset.Null {
			t.Fatalf("first access to %s = %v, %v", id, res, err)
		}
	}
	if got := h.m.Snapshot().LazyPending; got != 2 {
		t.Fatalf("lazy pending = %d, want 2", got)
	}
	h.m.Update()
	settle(t, h.m)
	h.m.Update()

	for _, id := range []string{"declined", "flaky"} {
		anim, err := h.m.Animation(id)
		if err != nil {
			t.Fatalf("Animation(%s) after lazy load: %v", id, err)
		}
		if anim.FrameCount() != 3 {
			t.Fatalf("%s frames = %d", id, anim.FrameCount())
		}
	}
	if h.m.State() != Ready {
		t.Fatalf("lazy loads changed the global state to %s", h.m.State())
	}
}

func TestUpdateDeltaAdvancesPlayheads(t *testing.T) {
	for _, reverse := range []bool{false, true} {
		t.Run(fmt.Sprintf("reverse=%v", reverse), func(t *testing.T) {
			h := newHarness(t, 100*mib, 1)
			h.options.PlayReverse = reverse
			if err := h.m.Setup(h.options); err != nil {
				t.Fatal(err)
			}
			opts := h.auto()
			opts.FrameRate = 10
			h.add("spin", animInfo(4, 2, 2), opts)
			h.start()
			h.tickUntilReady(10)

			h.m.UpdateDelta(100 * time.Millisecond)
			anim, err := h.m.Animation("spin")
			if err != nil {
				t.Fatal(err)
			}
			want := 1
			if reverse {
				want = 3
			}
			if anim.Playhead() != want {
				t.Fatalf("playhead = %d, want %d", anim.Playhead(), want)
			}
		})
	}
}

func TestRegistrationContract(t *testing.T) {
	m := NewManager()
	if err := m.AddAsset("a", "/a"); !errors.Is(err, ErrNotSetup) {
		t.Fatalf("AddAsset before Setup: %v", err)
	}
	if err := m.StartLoading(); !errors.Is(err, ErrNotSetup) {
		t.Fatalf("StartLoading before Setup: %v", err)
	}
	if err := m.Setup(Options{MaxVRAMBytes: -1}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("negative ceiling: %v", err)
	}
	if err := m.Setup(Options{NumThreads: 1}); err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.AddAsset("a", "/a"); err != nil {
		t.Fatal(err)
	}
	if err := m.AddAsset("a", "/b"); !errors.Is(err, asset.ErrDuplicateID) {
		t.Fatalf("duplicate: %v", err)
	}
	if err := m.AddAsset("b", " "); !errors.Is(err, asset.ErrInvalidPath) {
		t.Fatalf("empty path: %v", err)
	}
	id, err := m.AddPath("/assets/Idle Loop")
	if err != nil || id != "idle_loop" {
		t.Fatalf("AddPath = %q, %v", id, err)
	}
	if kind, err := m.AssetKind("a"); err != nil || kind != asset.KindUnknown {
		t.Fatalf("AssetKind before check = %s, %v", kind, err)
	}
	if _, err := m.AssetKind("zzz"); !errors.Is(err, asset.ErrUnknownAsset) {
		t.Fatalf("AssetKind unknown: %v", err)
	}

	if err := m.StartLoading(); err != nil {
		t.Fatal(err)
	}
	if m.State() != CheckingAssets {
		t.Fatalf("state after StartLoading = %s", m.State())
	}
	if err := m.AddAsset("late", "/late"); !errors.Is(err, asset.ErrCatalogSealed) {
		t.Fatalf("AddAsset after start: %v", err)
	}
	if err := m.StartLoading(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second StartLoading: %v", err)
	}
	if err := m.Setup(Options{}); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("Setup after start: %v", err)
	}
	if _, err := m.Resource("zzz"); !errors.Is(err, asset.ErrUnknownAsset) {
		t.Fatalf("Resource unknown: %v", err)
	}
}

func TestRegisteredKindMustMatchSource(t *testing.T) {
	h := newHarness(t, 100*mib, 1)
	h.prober.infos["/assets/odd"] = imageInfo(4, 4)
	if _, err := h.m.catalog.Register("odd", "/assets/odd", asset.KindAnimation, h.auto()); err != nil {
		t.Fatal(err)
	}
	h.start()
	h.tickUntilReady(5)
	rec := h.record("odd")
	if !rec.Failed() || !errors.Is(rec.Err, services.ErrValidation) {
		t.Fatalf("kind mismatch should fail the check: %+v", rec)
	}
}

func TestCloseStopsDispatch(t *testing.T) {
	h := newHarness(t, 100*mib, 1)
	h.add("a", animInfo(1, 4, 4), h.auto())
	h.add("b", animInfo(1, 4, 4), h.auto())
	h.start()
	h.m.Update()
	if err := h.m.Close(); err != nil {
		t.Fatal(err)
	}
	h.m.Update()
	if h.m.State() != CheckingAssets {
		t.Fatalf("state moved after Close: %s", h.m.State())
	}
	if rec := h.record("b"); rec.State != asset.StateUnchecked {
		t.Fatalf("b dispatched after Close: %s", rec.State)
	}
	if err := h.m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := h.m.AddAsset("c", "/c"); !errors.Is(err, ErrClosed) {
		t.Fatalf("AddAsset after Close: %v", err)
	}
}

func TestSnapshotCopiesRecords(t *testing.T) {
	h := newHarness(t, 100*mib, 1)
	h.add("a", animInfo(1, 4, 4), h.auto())
	snap := h.m.Snapshot()
	snap.Assets[0].State = asset.StatePreloaded
	if rec := h.record("a"); rec.State != asset.StateUnchecked {
		t.Fatal("snapshot aliases the catalog")
	}
	if filepath.Base(snap.Assets[0].SourcePath) != "a" {
		t.Fatalf("unexpected source path %s", snap.Assets[0].SourcePath)
	}
}
