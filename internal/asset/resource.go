package asset

import (
	"image"
	"time"
)

// Resource is a materialized asset ready for rendering. Texture returns the
// image to draw now: the static image itself or an animation's current frame.
type Resource interface {
	Kind() Kind
	Bounds() image.Rectangle
	FrameCount() int
	Texture() image.Image
	SizeBytes() int64
}

// Animation is the resource variant for image sequences. Advance moves the
// playhead by dt at FrameRate and wraps; a negative dt plays backwards.
type Animation interface {
	Resource
	Frame(i int) image.Image
	FrameRate() int
	Playhead() int
	Advance(dt time.Duration)
}

// Null is the inert placeholder returned alongside lookup errors. It draws
// nothing and never advances.
var Null Animation = nullResource{}

type nullResource struct{}

var emptyImage = image.NewRGBA(image.Rectangle{})

func (nullResource) Kind() Kind              { return KindUnknown }
func (nullResource) Bounds() image.Rectangle { return image.Rectangle{} }
func (nullResource) FrameCount() int         { return 0 }
func (nullResource) Texture() image.Image    { return emptyImage }
func (nullResource) SizeBytes() int64        { return 0 }
func (nullResource) Frame(int) image.Image   { return emptyImage }
func (nullResource) FrameRate() int          { return 0 }
func (nullResource) Playhead() int           { return 0 }
func (nullResource) Advance(time.Duration)   {}
