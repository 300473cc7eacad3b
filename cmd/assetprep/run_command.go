package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"assetprep/internal/logging"
	"assetprep/internal/preflight"
	"assetprep/internal/runner"
	"assetprep/internal/status"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration
	var skipPreflight bool
	var quiet bool
	var showAssets bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check, compress and preload every configured asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			opts := runner.Options{
				SkipPreflight: skipPreflight,
				Timeout:       timeout,
			}
			if quiet {
				opts.Logger = logging.NewNop()
			} else {
				opts.Progress = out
			}

			result, runErr := runner.Run(cmd.Context(), cfg, opts)
			if len(preflight.Failed(result.Preflight)) > 0 {
				fmt.Fprintln(out, status.PreflightTable(result.Preflight))
			}
			// The snapshot is only filled once the manager has started.
			if result.Snapshot.SessionID != "" {
				writeRunReport(out, result, showAssets)
			}
			return runErr
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort loading after this long (0 waits until ready)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without directory and health checks")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress logs and progress lines")
	cmd.Flags().BoolVar(&showAssets, "assets", true, "Print the per-asset table")
	return cmd
}

func writeRunReport(out io.Writer, result runner.Result, showAssets bool) {
	snap := result.Snapshot
	fmt.Fprintln(out, status.StageTable(snap))
	if showAssets && len(snap.Assets) > 0 {
		fmt.Fprintln(out, status.AssetTable(snap))
	}

	r := newReporter(out)
	counts := status.Count(snap)
	r.line("Session", statusInfo, "%s", result.SessionID)
	r.line("Preloaded", statusOK, "%d assets, %s resident", counts.Preloaded, status.Bytes(snap.Budget.Committed, 1))
	if counts.Skipped > 0 {
		r.line("Skipped", statusWarn, "%d assets load on first access", counts.Skipped)
	}
	if counts.Fallback > 0 {
		r.line("Fallback", statusWarn, "%d assets use their uncompressed source", counts.Fallback)
	}
	if counts.Failed > 0 {
		r.line("Failed", statusError, "%d assets could not be read", counts.Failed)
	}
	if counts.Pending > 0 {
		r.line("Unfinished", statusWarn, "%d assets were still in progress", counts.Pending)
	}
	r.line("Elapsed", statusInfo, "%s over %d ticks", result.Elapsed.Round(time.Millisecond), result.Ticks)
}
