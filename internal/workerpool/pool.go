// Package workerpool runs pipeline tasks on a fixed number of goroutines
// without ever blocking the submitting goroutine.
//
// The pool hands out one slot per submitted task and gets the slot back when
// the submitter observes the task's completion through Future.Poll. Submission
// fails fast when every slot is taken, so a coordinator can keep ticking
// while workers do blocking I/O.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// ErrBusy is returned by Submit when no slot is free.
var ErrBusy = errors.New("worker pool busy")

// Progress is a single-writer, single-reader completion cell in [0,1]. The
// worker running a task writes it; the coordinator reads it.
type Progress struct {
	bits atomic.Uint64
}

// Set stores v clamped to [0,1].
func (p *Progress) Set(v float64) {
	if p == nil {
		return
	}
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	p.bits.Store(math.Float64bits(v))
}

// Value returns the last stored fraction.
func (p *Progress) Value() float64 {
	if p == nil {
		return 0
	}
	return math.Float64frombits(p.bits.Load())
}

// Task is the work a worker runs.
type Task[T any] func(ctx context.Context, progress *Progress) (T, error)

// Future is the handle to a submitted task.
type Future[T any] struct {
	ID       string
	Progress *Progress

	done     chan struct{}
	result   T
	err      error
	pool     *Pool
	released bool
}

// Poll returns the task result without blocking. ok is false while the task
// is still running. The first successful Poll returns the slot to the pool.
func (f *Future[T]) Poll() (result T, err error, ok bool) {
	select {
	case <-f.done:
	default:
		return result, nil, false
	}
	if !f.released {
		f.released = true
		f.pool.release()
	}
	return f.result, f.err, true
}

// Done is closed when the task finishes.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Pool is a fixed set of worker goroutines.
type Pool struct {
	size     int
	jobs     chan func()
	wg       sync.WaitGroup
	inFlight atomic.Int64
	closed   atomic.Bool
	once     sync.Once
}

// New starts size workers. size below one is raised to one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{size: size, jobs: make(chan func(), size)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// InFlight returns the number of slots held by unobserved tasks.
func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }

// Available returns the number of free slots.
func (p *Pool) Available() int {
	if p.closed.Load() {
		return 0
	}
	return p.size - p.InFlight()
}

func (p *Pool) release() { p.inFlight.Add(-1) }

// Submit queues task on p. Submit, Poll and Close belong to one coordinating
// goroutine. It never blocks: it returns ErrBusy when every
// slot is held and ErrClosed after Close. Panics inside task are returned as
// errors from Poll.
func Submit[T any](ctx context.Context, p *Pool, id string, task Task[T]) (*Future[T], error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	if p.inFlight.Add(1) > int64(p.size) {
		p.inFlight.Add(-1)
		return nil, ErrBusy
	}
	f := &Future[T]{ID: id, Progress: &Progress{}, done: make(chan struct{}), pool: p}
	job := func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("task %s panicked: %v", id, r)
			}
		}()
		f.result, f.err = task(ctx, f.Progress)
		if f.err == nil {
			f.Progress.Set(1)
		}
	}
	// Cannot block: at most size jobs are queued or running and the channel
	// holds size entries.
	p.jobs <- job
	return f, nil
}

// Close stops accepting work and waits for queued and running tasks to
// finish. Tasks are never interrupted.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.jobs)
	})
	p.wg.Wait()
}
