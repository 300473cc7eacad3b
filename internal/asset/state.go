package asset

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of a single asset.
type State string

const (
	StateUnchecked      State = "unchecked"
	StateChecked        State = "checked"
	StateCompressing    State = "compressing"
	StateCompressed     State = "compressed"
	StatePendingPreload State = "pending_preload"
	StatePreloading     State = "preloading"
	StatePreloaded      State = "preloaded"
	StateSkipped        State = "skipped"
)

// EventType names a stage completion observed by the coordinator.
type EventType string

const (
	EventCheckSucceeded   EventType = "check_succeeded"
	EventCheckFailed      EventType = "check_failed"
	EventCompressStarted  EventType = "compress_started"
	EventCompressBypassed EventType = "compress_bypassed"
	EventCompressFinished EventType = "compress_finished"
	EventCompressFailed   EventType = "compress_failed"
	EventPreloadQueued    EventType = "preload_queued"
	EventPreloadStarted   EventType = "preload_started"
	EventPreloadFinished  EventType = "preload_finished"
	EventPreloadFailed    EventType = "preload_failed"
	EventPreloadDenied    EventType = "preload_denied"
)

// Event is the input to Transition. Err carries the stage error for the
// failure events.
type Event struct {
	Type EventType
	Err  error
}

// ErrInvalidTransition reports an event that is not legal in the current state.
var ErrInvalidTransition = errors.New("invalid asset state transition")

type transitionKey struct {
	from  State
	event EventType
}

var transitions = map[transitionKey]State{
	{StateUnchecked, EventCheckSucceeded}:      StateChecked,
	{StateUnchecked, EventCheckFailed}:         StateChecked,
	{StateChecked, EventCompressStarted}:       StateCompressing,
	{StateChecked, EventCompressBypassed}:      StateCompressed,
	{StateChecked, EventPreloadQueued}:         StatePendingPreload,
	{StateCompressing, EventCompressFinished}:  StateCompressed,
	{StateCompressing, EventCompressFailed}:    StateCompressed,
	{StateCompressed, EventPreloadQueued}:      StatePendingPreload,
	{StatePendingPreload, EventPreloadStarted}: StatePreloading,
	{StatePendingPreload, EventPreloadDenied}:  StateSkipped,
	{StatePreloading, EventPreloadFinished}:    StatePreloaded,
	{StatePreloading, EventPreloadFailed}:      StateSkipped,
}

// Transition returns the state reached from current on ev. It is a pure
// function; Record.Apply layers the record bookkeeping on top.
func Transition(current State, ev Event) (State, error) {
	next, ok := transitions[transitionKey{from: current, event: ev.Type}]
	if !ok {
		return current, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev.Type, current)
	}
	return next, nil
}

// Terminal reports whether no further stage will touch an asset in state s.
// A Checked asset is only terminal when its check failed, see Record.Terminal.
func (s State) Terminal() bool {
	return s == StatePreloaded || s == StateSkipped
}
