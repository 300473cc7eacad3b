package pipeline

import (
	"fmt"
	"strings"

	"assetprep/internal/stage"
)

// GlobalState is the process-wide pipeline position. It only moves forward.
type GlobalState int

const (
	Uninitialized GlobalState = iota
	CheckingAssets
	CompressingAssets
	PreloadingAssets
	Ready
)

var globalStateNames = [...]string{
	Uninitialized:     "uninitialized",
	CheckingAssets:    "checking_assets",
	CompressingAssets: "compressing_assets",
	PreloadingAssets:  "preloading_assets",
	Ready:             "ready",
}

func (s GlobalState) String() string {
	if s < Uninitialized || s > Ready {
		return fmt.Sprintf("global_state(%d)", int(s))
	}
	return globalStateNames[s]
}

// ParseGlobalState is the inverse of String.
func ParseGlobalState(value string) (GlobalState, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for i, name := range globalStateNames {
		if name == value {
			return GlobalState(i), nil
		}
	}
	return Uninitialized, fmt.Errorf("unknown global state %q", value)
}

// stage returns the pipeline stage whose draining ends s.
func (s GlobalState) stage() (stage.Name, bool) {
	switch s {
	case CheckingAssets:
		return stage.Check, true
	case CompressingAssets:
		return stage.Compress, true
	case PreloadingAssets:
		return stage.Preload, true
	default:
		return "", false
	}
}

type globalEvent int

const (
	eventStartLoading globalEvent = iota
	// eventStageDrained means the stage owned by the current state has no
	// queued or running work left.
	eventStageDrained
)

// nextGlobalState is the only place the global state changes. Events that do
// not apply to current leave it unchanged.
func nextGlobalState(current GlobalState, ev globalEvent) GlobalState {
	switch ev {
	case eventStartLoading:
		if current == Uninitialized {
			return CheckingAssets
		}
	case eventStageDrained:
		if current >= CheckingAssets && current < Ready {
			return current + 1
		}
	}
	return current
}
