package materialize

import (
	"image"
	"image/draw"
	"time"

	"assetprep/internal/asset"
)

// Image is a materialized static image.
type Image struct {
	img *image.RGBA
}

// NewImage wraps img, converting it to RGBA when needed.
func NewImage(img image.Image) *Image {
	return &Image{img: toRGBA(img)}
}

func (i *Image) Kind() asset.Kind        { return asset.KindStaticImage }
func (i *Image) Bounds() image.Rectangle { return i.img.Bounds() }
func (i *Image) FrameCount() int         { return 1 }
func (i *Image) Texture() image.Image    { return i.img }
func (i *Image) SizeBytes() int64        { return int64(len(i.img.Pix)) }

// Animation is a materialized image sequence with a playhead. Advance and
// Playhead belong to the goroutine driving the manager.
type Animation struct {
	frames   []*image.RGBA
	rate     int
	playhead int
	carry    time.Duration
}

// NewAnimation builds an animation over frames played at rate frames per
// second. frames must not be empty.
func NewAnimation(frames []image.Image, rate int) *Animation {
	if rate <= 0 {
		rate = 1
	}
	out := make([]*image.RGBA, len(frames))
	for i, frame := range frames {
		out[i] = toRGBA(frame)
	}
	return &Animation{frames: out, rate: rate}
}

func (a *Animation) Kind() asset.Kind        { return asset.KindAnimation }
func (a *Animation) Bounds() image.Rectangle { return a.frames[0].Bounds() }
func (a *Animation) FrameCount() int         { return len(a.frames) }
func (a *Animation) FrameRate() int          { return a.rate }
func (a *Animation) Playhead() int           { return a.playhead }
func (a *Animation) Texture() image.Image    { return a.frames[a.playhead] }

// Frame returns frame i, wrapping out-of-range indices.
func (a *Animation) Frame(i int) image.Image {
	n := len(a.frames)
	return a.frames[((i%n)+n)%n]
}

// SizeBytes is the resident size of every frame.
func (a *Animation) SizeBytes() int64 {
	var total int64
	for _, frame := range a.frames {
		total += int64(len(frame.Pix))
	}
	return total
}

// Advance moves the playhead by whole frames elapsed in dt, carrying the
// remainder to the next call. Negative dt plays backwards.
func (a *Animation) Advance(dt time.Duration) {
	frameDur := time.Second / time.Duration(a.rate)
	a.carry += dt
	steps := int(a.carry / frameDur)
	if steps == 0 {
		return
	}
	a.carry -= time.Duration(steps) * frameDur
	n := len(a.frames)
	a.playhead = ((a.playhead+steps)%n + n) % n
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
