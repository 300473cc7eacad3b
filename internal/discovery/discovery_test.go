package discovery_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"assetprep/internal/asset"
	"assetprep/internal/discovery"
	"assetprep/internal/testsupport"
)

func TestScan(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFrames(t, filepath.Join(root, "Walk Cycle"), 2, 2, 2)
	testsupport.WriteImage(t, filepath.Join(root, "Logo.PNG"), 2, 2, 0)
	testsupport.WriteFile(t, filepath.Join(root, "readme.md"), 3)
	if err := os.Mkdir(filepath.Join(root, ".cache"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := discovery.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].ID != "logo" || entries[0].Kind != asset.KindStaticImage {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].ID != "walk_cycle" || entries[1].Kind != asset.KindAnimation {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}

func TestScanRejectsCollidingIDs(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteImage(t, filepath.Join(root, "Hero.png"), 1, 1, 0)
	testsupport.WriteImage(t, filepath.Join(root, "hero.jpg.png"), 1, 1, 0)
	testsupport.WriteImage(t, filepath.Join(root, "HERO.gif"), 1, 1, 0)

	_, err := discovery.Scan(root)
	if !errors.Is(err, asset.ErrDuplicateID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestScanMissingFolder(t *testing.T) {
	if _, err := discovery.Scan(filepath.Join(t.TempDir(), "nope")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestDeriveID(t *testing.T) {
	for in, want := range map[string]string{
		"/assets/Idle Loop":    "idle_loop",
		"/assets/Badge.jpeg":   "badge",
		"/assets/run.v2/":      "run_v2",
		"relative/Sky Box.gif": "sky_box",
	} {
		if got := discovery.DeriveID(in); got != want {
			t.Fatalf("DeriveID(%q) = %q, want %q", in, got, want)
		}
	}
}
