package asset

import (
	"fmt"
	"strings"
)

// Kind discriminates the record variants.
type Kind int

const (
	KindUnknown Kind = iota
	KindAnimation
	KindStaticImage
)

func (k Kind) String() string {
	switch k {
	case KindAnimation:
		return "animation"
	case KindStaticImage:
		return "static_image"
	default:
		return "unknown"
	}
}

// Preference is the tri-state preload choice captured in LoadOptions.
type Preference int

const (
	// PreloadAuto lets the budget allocator decide.
	PreloadAuto Preference = iota
	PreloadYes
	PreloadNo
)

func (p Preference) String() string {
	switch p {
	case PreloadYes:
		return "yes"
	case PreloadNo:
		return "no"
	default:
		return "auto"
	}
}

// ParsePreference accepts yes, no, or auto (and the empty string as auto).
func ParsePreference(value string) (Preference, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes":
		return PreloadYes, nil
	case "no":
		return PreloadNo, nil
	case "auto", "":
		return PreloadAuto, nil
	default:
		return PreloadAuto, fmt.Errorf("unknown preload preference %q", value)
	}
}

// LoadOptions is the per-asset configuration captured at registration.
// FrameRate and BufferFrames only apply to animations. NumThreads bounds the
// asset's own frame decoding and is independent of the pipeline worker pool.
type LoadOptions struct {
	UseCompression bool
	FrameRate      int
	BufferFrames   int
	NumThreads     int
	Preload        Preference
}

// DefaultLoadOptions mirrors the repository defaults.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		UseCompression: true,
		FrameRate:      30,
		BufferFrames:   5,
		NumThreads:     4,
		Preload:        PreloadAuto,
	}
}

func (o LoadOptions) withDefaults() LoadOptions {
	def := DefaultLoadOptions()
	if o.FrameRate <= 0 {
		o.FrameRate = def.FrameRate
	}
	if o.BufferFrames <= 0 {
		o.BufferFrames = def.BufferFrames
	}
	if o.NumThreads <= 0 {
		o.NumThreads = def.NumThreads
	}
	return o
}
