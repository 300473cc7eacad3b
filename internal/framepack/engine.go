package framepack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sys/unix"

	"assetprep/internal/asset"
	"assetprep/internal/fileutil"
	"assetprep/internal/logging"
	"assetprep/internal/media"
	"assetprep/internal/services"
	"assetprep/internal/stage"
	"assetprep/internal/textutil"
	"assetprep/internal/workerpool"
)

const lockRetryDelay = 50 * time.Millisecond

// ErrLocked reports that another writer held the archive lock past the timeout.
var ErrLocked = errors.New("frame archive is locked by another writer")

// ParseLevel maps a configuration level name to a zstd encoder level.
func ParseLevel(name string) (zstd.EncoderLevel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return zstd.SpeedDefault, nil
	}
	ok, level := zstd.EncoderLevelFromString(name)
	if !ok {
		return zstd.SpeedDefault, fmt.Errorf("unknown compression level %q", name)
	}
	return level, nil
}

// Engine writes frame archives into a single output directory.
type Engine struct {
	dir         string
	level       zstd.EncoderLevel
	lockTimeout time.Duration
	logger      *slog.Logger
}

// New constructs an Engine writing into dir. A non-positive lockTimeout
// waits as long as ctx allows.
func New(dir string, level zstd.EncoderLevel, lockTimeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		dir:         dir,
		level:       level,
		lockTimeout: lockTimeout,
		logger:      logging.NewComponentLogger(logger, "framepack"),
	}
}

// Dir returns the output directory.
func (e *Engine) Dir() string { return e.dir }

// CompressedPath returns where the archive for rec lives. The file name is
// the sanitised ID plus a hash of the raw ID so distinct IDs never collide.
func (e *Engine) CompressedPath(rec asset.Record) string {
	hash := strconv.FormatUint(xxhash.Sum64String(rec.ID), 16)
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return filepath.Join(e.dir, textutil.SanitizeToken(rec.ID)+"-"+hash+Extension)
}

// Compress packs rec's frame directory into its archive and returns the
// archive path. An existing archive is reused.
func (e *Engine) Compress(ctx context.Context, rec asset.Record, progress *workerpool.Progress) (string, error) {
	out := e.CompressedPath(rec)
	ctx = services.WithAssetID(ctx, rec.ID)
	logger := logging.WithContext(ctx, e.logger)

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "compress", "create output dir",
			"Compressed output directory could not be created", err)
	}

	unlock, err := e.lock(ctx, out)
	if err != nil {
		return "", err
	}
	defer unlock()

	if fileutil.Exists(out) {
		progress.Set(1)
		logger.Debug("reusing existing frame archive", logging.String("path", out))
		return out, nil
	}

	frames, err := media.ListFrames(rec.SourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "compress", "list frames",
			"Animation frames could not be listed", err)
	}
	if len(frames) == 0 {
		return "", services.Wrap(services.ErrValidation, "compress", "list frames",
			"Animation directory holds no frames", media.ErrNoFrames)
	}

	start := time.Now()
	var rawBytes int64
	err = fileutil.WriteAtomic(out, 0o644, func(w io.Writer) error {
		fw, err := NewWriter(w, len(frames), e.level)
		if err != nil {
			return err
		}
		for i, path := range frames {
			if err := ctx.Err(); err != nil {
				_ = fw.Close()
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				_ = fw.Close()
				return fmt.Errorf("read frame: %w", err)
			}
			if err := fw.Add(filepath.Base(path), data); err != nil {
				_ = fw.Close()
				return err
			}
			rawBytes += int64(len(data))
			progress.Set(float64(i+1) / float64(len(frames)))
		}
		return fw.Close()
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "compress", "write archive",
			"Frame archive could not be written", err)
	}

	attrs := []logging.Attr{
		logging.String("path", out),
		logging.Int("frames", len(frames)),
		logging.Int64("raw_bytes", rawBytes),
		logging.Duration("elapsed", time.Since(start)),
	}
	if info, statErr := os.Stat(out); statErr == nil {
		attrs = append(attrs, logging.Int64("archive_bytes", info.Size()))
	}
	logger.Info("frame archive written", logging.Args(attrs...)...)
	return out, nil
}

func (e *Engine) lock(ctx context.Context, out string) (func(), error) {
	lockCtx := ctx
	if e.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, e.lockTimeout)
		defer cancel()
	}
	fl := flock.New(out + ".lock")
	ok, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			err = ErrLocked
		}
		return nil, services.Wrap(services.ErrTransient, "compress", "lock archive",
			"Another process is writing this archive", err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			logging.WarnWithContext(e.logger, "failed to release archive lock", "archive_unlock_failed",
				logging.String("path", out),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the stale .lock file"),
				logging.String("impact", "lock file left on disk"))
		}
	}, nil
}

// HealthCheck reports whether the output directory exists or can be created
// and is writable.
func (e *Engine) HealthCheck(context.Context) stage.Health {
	const name = "framepack"
	if strings.TrimSpace(e.dir) == "" {
		return stage.Unhealthy(name, "output directory not configured")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("create %s: %v", e.dir, err))
	}
	if err := unix.Access(e.dir, unix.W_OK|unix.X_OK); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("%s not writable: %v", e.dir, err))
	}
	return stage.Healthy(name)
}
