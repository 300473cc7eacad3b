package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"assetprep/internal/asset"
)

var (
	// ErrUnreadable reports a path the process cannot read.
	ErrUnreadable = errors.New("path is not readable")
	// ErrNoFrames reports an animation directory without image files.
	ErrNoFrames = errors.New("no image frames found")
	// ErrUnsupported reports a file that is not a recognised image.
	ErrUnsupported = errors.New("unsupported image format")
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
}

// Info describes what Inspect found at a source path.
type Info struct {
	Kind   asset.Kind
	Format string
	Width  int
	Height int
	// Frames lists the frame files for animations and the file itself for
	// static images.
	Frames []string
}

// FrameCount returns the number of frames.
func (i Info) FrameCount() int {
	return len(i.Frames)
}

// IsImageFile reports whether name carries a recognised image extension.
func IsImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ListFrames returns the image files directly inside dir, sorted by name.
// Hidden files are ignored.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	frames := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !IsImageFile(name) {
			continue
		}
		frames = append(frames, filepath.Join(dir, name))
	}
	sort.Strings(frames)
	return frames, nil
}

// Inspect probes path for readability, classifies it, and decodes the
// header of its first frame. A directory is an animation and a file is a
// static image.
func Inspect(ctx context.Context, path string) (Info, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Info{}, fmt.Errorf("inspect: %w", ErrUnreadable)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("inspect %s: %w", path, err)
	}
	mode := uint32(unix.R_OK)
	if info.IsDir() {
		mode |= unix.X_OK
	}
	if err := unix.Access(path, mode); err != nil {
		return Info{}, fmt.Errorf("inspect %s: %w: %v", path, ErrUnreadable, err)
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	result := Info{Kind: asset.KindStaticImage, Frames: []string{path}}
	if info.IsDir() {
		frames, err := ListFrames(path)
		if err != nil {
			return Info{}, fmt.Errorf("inspect %s: %w", path, err)
		}
		if len(frames) == 0 {
			return Info{}, fmt.Errorf("inspect %s: %w", path, ErrNoFrames)
		}
		result = Info{Kind: asset.KindAnimation, Frames: frames}
	} else if !IsImageFile(path) {
		return Info{}, fmt.Errorf("inspect %s: %w", path, ErrUnsupported)
	}

	cfg, format, err := DecodeConfig(result.Frames[0])
	if err != nil {
		return Info{}, err
	}
	result.Width = cfg.Width
	result.Height = cfg.Height
	result.Format = format
	return result, nil
}

// DecodeConfig reads only the image header of path.
func DecodeConfig(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("decode header %s: %w: %v", path, ErrUnsupported, err)
	}
	return cfg, format, nil
}

// DecodeFile fully decodes the image at path.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Decode decodes an encoded image from r.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return img, nil
}
