package workerpool_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"assetprep/internal/workerpool"
)

func waitDone[T any](t *testing.T, f *workerpool.Future[T]) (T, error) {
	t.Helper()
	select {
	case <-f.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("task %s did not finish", f.ID)
	}
	result, err, ok := f.Poll()
	if !ok {
		t.Fatalf("Poll after Done reported not ready")
	}
	return result, err
}

func TestSubmitNeverBlocksWhenFull(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Close()

	release := make(chan struct{})
	blocking := func(ctx context.Context, p *workerpool.Progress) (int, error) {
		p.Set(0.5)
		<-release
		return 7, nil
	}

	first, err := workerpool.Submit(context.Background(), pool, "a", blocking)
	if err != nil {
		t.Fatalf("Submit a: %v", err)
	}
	second, err := workerpool.Submit(context.Background(), pool, "b", blocking)
	if err != nil {
		t.Fatalf("Submit b: %v", err)
	}
	if _, err := workerpool.Submit(context.Background(), pool, "c", blocking); !errors.Is(err, workerpool.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if pool.Available() != 0 || pool.InFlight() != 2 {
		t.Fatalf("available=%d inflight=%d", pool.Available(), pool.InFlight())
	}
	if _, _, ok := first.Poll(); ok {
		t.Fatal("task should still be running")
	}

	close(release)
	for _, f := range []*workerpool.Future[int]{first, second} {
		got, err := waitDone(t, f)
		if err != nil || got != 7 {
			t.Fatalf("result = %d, %v", got, err)
		}
		if f.Progress.Value() != 1 {
			t.Fatalf("progress = %v, want 1 on success", f.Progress.Value())
		}
	}
	if pool.Available() != 2 {
		t.Fatalf("slots not returned: available=%d", pool.Available())
	}
	// A second Poll must not release the slot twice.
	first.Poll()
	if pool.InFlight() != 0 {
		t.Fatalf("inflight = %d after double poll", pool.InFlight())
	}
}

func TestSubmitRecoversPanics(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Close()

	f, err := workerpool.Submit(context.Background(), pool, "boom", func(context.Context, *workerpool.Progress) (string, error) {
		panic("kaboom")
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err = waitDone(t, f)
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected panic error, got %v", err)
	}
}

func TestCloseWaitsForRunningTasks(t *testing.T) {
	pool := workerpool.New(3)
	var finished atomic.Int32
	for i := 0; i < 3; i++ {
		_, err := workerpool.Submit(context.Background(), pool, "sleep", func(context.Context, *workerpool.Progress) (struct{}, error) {
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
			return struct{}{}, nil
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	pool.Close()
	if finished.Load() != 3 {
		t.Fatalf("Close returned before tasks finished: %d", finished.Load())
	}
	if _, err := workerpool.Submit(context.Background(), pool, "late", func(context.Context, *workerpool.Progress) (int, error) { return 0, nil }); !errors.Is(err, workerpool.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	pool.Close()
}

func TestProgressClamps(t *testing.T) {
	var p workerpool.Progress
	for in, want := range map[float64]float64{-1: 0, 0.25: 0.25, 3: 1} {
		p.Set(in)
		if p.Value() != want {
			t.Fatalf("Set(%v) -> %v, want %v", in, p.Value(), want)
		}
	}
	var nilProgress *workerpool.Progress
	nilProgress.Set(1)
	if nilProgress.Value() != 0 {
		t.Fatal("nil progress reads zero")
	}
}
