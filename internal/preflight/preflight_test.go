package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assetprep/internal/stage"
	"assetprep/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir, ReadWrite)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "read/write ok") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"), ReadOnly)
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f, ReadOnly)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_ReadOnlyDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	if result := CheckDirectoryAccess("assets", dir, ReadOnly); !result.Passed {
		t.Fatalf("read-only dir should pass a read check: %s", result.Detail)
	}
	if result := CheckDirectoryAccess("output", dir, ReadWrite); result.Passed {
		t.Fatal("read-only dir should fail a write check")
	}
}

type fakeChecker struct{ health stage.Health }

func (f fakeChecker) HealthCheck(context.Context) stage.Health { return f.health }

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	for _, dir := range []string{cfg.Paths.AssetDir, cfg.Paths.CompressedDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(context.Background(), cfg,
		fakeChecker{stage.Healthy("framepack")},
		"not a checker",
		fakeChecker{stage.Unhealthy("materialize", "no codecs")},
	)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "materialize" || failed[0].Detail != "no codecs" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	if results[3].Detail != "Ready" {
		t.Fatalf("healthy detail = %q", results[3].Detail)
	}
}

func TestRunAllMissingAssetDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.LogDir = ""
	if err := os.MkdirAll(cfg.Paths.CompressedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Passed || !results[1].Passed {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil, got %+v", results)
	}
}
