package materialize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"assetprep/internal/asset"
	"assetprep/internal/framepack"
	"assetprep/internal/logging"
	"assetprep/internal/media"
	"assetprep/internal/services"
	"assetprep/internal/stage"
	"assetprep/internal/workerpool"
)

// Loader decodes assets into Image and Animation resources.
type Loader struct {
	logger *slog.Logger
}

// NewLoader constructs a Loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{logger: logging.NewComponentLogger(logger, "materialize")}
}

type frameSource struct {
	name   string
	decode func() (image.Image, error)
}

// Load materializes rec from rec.LoadPath().
func (l *Loader) Load(ctx context.Context, rec asset.Record, progress *workerpool.Progress) (asset.Resource, error) {
	ctx = services.WithAssetID(ctx, rec.ID)
	logger := logging.WithContext(ctx, l.logger)
	path := rec.LoadPath()

	sources, err := l.sources(rec, path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	images, err := decodeAll(ctx, sources, rec.Options.NumThreads, progress)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "materialize", "decode frames",
			"Asset frames could not be decoded", err)
	}

	var res asset.Resource
	switch rec.Kind {
	case asset.KindStaticImage:
		res = NewImage(images[0])
	default:
		res = NewAnimation(images, rec.Options.FrameRate)
	}
	logger.Debug("asset materialized",
		logging.String("path", path),
		logging.Int("frames", res.FrameCount()),
		logging.Int64("resident_bytes", res.SizeBytes()),
		logging.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (l *Loader) sources(rec asset.Record, path string) ([]frameSource, error) {
	switch {
	case rec.Kind != asset.KindAnimation && rec.Kind != asset.KindStaticImage:
		return nil, services.Wrap(services.ErrValidation, "materialize", "classify",
			fmt.Sprintf("Asset kind %s cannot be materialized", rec.Kind), nil)
	case strings.EqualFold(filepath.Ext(path), framepack.Extension):
		frames, err := framepack.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "materialize", "read archive",
				"Frame archive could not be read", err)
		}
		out := make([]frameSource, len(frames))
		for i, frame := range frames {
			data := frame.Data
			out[i] = frameSource{name: frame.Name, decode: func() (image.Image, error) {
				return media.Decode(bytes.NewReader(data))
			}}
		}
		return nonEmpty(out, path)
	case rec.Kind == asset.KindStaticImage:
		return []frameSource{fileSource(path)}, nil
	default:
		paths, err := media.ListFrames(path)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "materialize", "list frames",
				"Animation frames could not be listed", err)
		}
		out := make([]frameSource, len(paths))
		for i, p := range paths {
			out[i] = fileSource(p)
		}
		return nonEmpty(out, path)
	}
}

func fileSource(path string) frameSource {
	return frameSource{name: filepath.Base(path), decode: func() (image.Image, error) {
		return media.DecodeFile(path)
	}}
}

func nonEmpty(sources []frameSource, path string) ([]frameSource, error) {
	if len(sources) == 0 {
		return nil, services.Wrap(services.ErrValidation, "materialize", "list frames",
			"Asset holds no frames", fmt.Errorf("%s: %w", path, media.ErrNoFrames))
	}
	return sources, nil
}

// decodeAll decodes sources with at most threads concurrent decoders and
// returns the images in source order.
func decodeAll(ctx context.Context, sources []frameSource, threads int, progress *workerpool.Progress) ([]image.Image, error) {
	if threads <= 0 {
		threads = 1
	}
	images := make([]image.Image, len(sources))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := src.decode()
			if err != nil {
				return fmt.Errorf("frame %s: %w", src.name, err)
			}
			images[i] = img
			mu.Lock()
			done++
			progress.Set(float64(done) / float64(len(sources)))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// HealthCheck always reports ready: decoding needs nothing beyond the
// registered image codecs.
func (l *Loader) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("materialize")
}
