package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"assetprep/internal/config"
	"assetprep/internal/logging"
	"assetprep/internal/metrics"
	"assetprep/internal/pipeline"
	"assetprep/internal/preflight"
	"assetprep/internal/services"
	"assetprep/internal/status"
)

// Options configures a session.
type Options struct {
	// Logger overrides the logger built from cfg.
	Logger *slog.Logger
	// SkipPreflight starts loading without the directory and health checks.
	SkipPreflight bool
	// Timeout bounds the session. Zero waits until Ready or cancellation.
	Timeout time.Duration
	// Progress receives one status.Summary line per sampled progress step.
	Progress io.Writer
}

// Result is the outcome of a session.
type Result struct {
	SessionID string
	Snapshot  pipeline.Snapshot
	Preflight []preflight.Result
	Ticks     int
	Elapsed   time.Duration
	// MetricsAddr is the bound metrics address when the endpoint was enabled.
	MetricsAddr string
}

// Run loads every configured asset and returns the final snapshot. A
// cancelled or timed out session still returns the snapshot reached so far
// along with the context error.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) (Result, error) {
	if cfg == nil {
		return Result{}, fmt.Errorf("config is required")
	}

	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if opts.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, opts.Timeout)
		defer cancelTimeout()
	}

	result := Result{SessionID: uuid.NewString()}
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.NewFromConfig(cfg)
		if err != nil {
			return result, fmt.Errorf("init logger: %w", err)
		}
	}
	logger = logging.WithContext(services.WithSessionID(ctx, result.SessionID), logger)

	reg := metrics.New()
	if cfg.Metrics.Enabled {
		addr, shutdown, err := serveMetrics(cfg.Metrics.Bind, reg, logger)
		if err != nil {
			return result, services.Wrap(services.ErrConfiguration, "runner", "metrics endpoint",
				"Metrics endpoint could not listen", err)
		}
		defer shutdown()
		result.MetricsAddr = addr
	}

	pipelineOpts, err := pipeline.OptionsFromConfig(cfg, logger, reg, result.SessionID)
	if err != nil {
		return result, err
	}
	if !opts.SkipPreflight {
		result.Preflight = preflight.RunAll(ctx, cfg, pipelineOpts.Engine, pipelineOpts.Materializer)
		if failed := preflight.Failed(result.Preflight); len(failed) > 0 {
			names := make([]string, 0, len(failed))
			for _, r := range failed {
				names = append(names, r.Name)
			}
			return result, services.Wrap(services.ErrConfiguration, "runner", "preflight",
				"Preflight failed: "+strings.Join(names, ", "), nil)
		}
	}

	mgr, err := pipeline.NewManagerFromOptions(cfg, pipelineOpts)
	if err != nil {
		return result, err
	}
	defer mgr.Close()
	if err := mgr.StartLoading(); err != nil {
		return result, err
	}

	tick := time.Duration(cfg.Runner.TickMS) * time.Millisecond
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	sampler := logging.NewProgressSampler(10)
	started := time.Now()
	last := started

	for mgr.State() != pipeline.Ready {
		select {
		case <-ctx.Done():
			_ = mgr.Close()
			result.Snapshot = mgr.Snapshot()
			result.Elapsed = time.Since(started)
			logger.Warn("loading interrupted",
				logging.String(logging.FieldEventType, "session_interrupted"),
				logging.String("state", mgr.State().String()),
				logging.Error(ctx.Err()),
				logging.String(logging.FieldErrorHint, "rerun to resume; finished archives are reused"),
				logging.String(logging.FieldImpact, "assets not yet prepared stay unloaded"))
			return result, ctx.Err()
		case now := <-ticker.C:
			mgr.UpdateDelta(now.Sub(last))
			last = now
			result.Ticks++
			p := mgr.Progress()
			if sampler.ShouldLog(p.Overall, p.State.String()) {
				line := status.Summary(mgr.Snapshot())
				logger.Info("loading progress",
					logging.String(logging.FieldEventType, "progress"),
					logging.String("status", line))
				if opts.Progress != nil {
					fmt.Fprintln(opts.Progress, line)
				}
			}
		}
	}

	result.Snapshot = mgr.Snapshot()
	result.Elapsed = time.Since(started)
	counts := status.Count(result.Snapshot)
	logger.Info("loading complete",
		logging.String(logging.FieldEventType, "session_complete"),
		logging.Int("preloaded", counts.Preloaded),
		logging.Int("skipped", counts.Skipped),
		logging.Int("failed", counts.Failed),
		logging.Int("fallback", counts.Fallback),
		logging.Int("ticks", result.Ticks),
		logging.Duration("elapsed", result.Elapsed),
		logging.Megabytes("committed_mb", result.Snapshot.Budget.Committed))
	return result, nil
}

// serveMetrics exposes reg on bind and returns the bound address and a
// shutdown function.
func serveMetrics(bind string, reg *metrics.Metrics, logger *slog.Logger) (string, func(), error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return "", nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics endpoint stopped",
				logging.String(logging.FieldEventType, "metrics_stopped"),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metrics.bind"),
				logging.String(logging.FieldImpact, "metrics are no longer exported"))
		}
	}()
	addr := listener.Addr().String()
	logger.Info("metrics endpoint listening", logging.String("addr", addr))
	return addr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
