package pipeline

import (
	"time"

	"assetprep/internal/stage"
	"assetprep/internal/workerpool"
)

// inflightTask is a submitted task seen from the coordinator. poll applies
// the result and reports true once the task has finished.
type inflightTask struct {
	id       string
	started  time.Time
	progress *workerpool.Progress
	done     <-chan struct{}
	poll     func() bool
}

// stageQueue is the pending FIFO, the in-flight set, and the completion
// count of one stage.
type stageQueue struct {
	name     stage.Name
	pending  []string
	inFlight []*inflightTask
	// resolved counts assets the stage is finished with.
	resolved int
	// waiting counts assets handed to the stage but not yet in pending; the
	// preload stage uses it for arrivals awaiting admission.
	waiting   int
	highWater float64
}

func newStageQueue(name stage.Name) *stageQueue {
	return &stageQueue{name: name}
}

func (q *stageQueue) push(id string) {
	q.pending = append(q.pending, id)
}

func (q *stageQueue) pop() (string, bool) {
	if len(q.pending) == 0 {
		return "", false
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	return id, true
}

func (q *stageQueue) drained() bool {
	return q.waiting == 0 && len(q.pending) == 0 && len(q.inFlight) == 0
}

// pollAll polls every in-flight task in dispatch order and drops the
// finished ones.
func (q *stageQueue) pollAll() {
	kept := q.inFlight[:0]
	for _, task := range q.inFlight {
		if !task.poll() {
			kept = append(kept, task)
		}
	}
	for i := len(kept); i < len(q.inFlight); i++ {
		q.inFlight[i] = nil
	}
	q.inFlight = kept
}

// progress builds the stage view against total and ratchets the high-water
// fraction.
func (q *stageQueue) progress(total int) stage.Progress {
	p := q.view(total)
	if raw := p.Raw(); raw > q.highWater {
		q.highWater = raw
	}
	p.Fraction = q.highWater
	return p
}

// view is progress without touching the high-water mark.
func (q *stageQueue) view(total int) stage.Progress {
	p := stage.Progress{
		Stage:     q.name,
		Pending:   q.waiting + len(q.pending),
		InFlight:  len(q.inFlight),
		Completed: q.resolved,
		Total:     total,
	}
	if n := len(q.inFlight); n > 0 {
		var sum float64
		for _, task := range q.inFlight {
			sum += task.progress.Value()
		}
		p.InFlightMean = sum / float64(n)
	}
	return p
}
