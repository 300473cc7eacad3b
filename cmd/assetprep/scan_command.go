package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"assetprep/internal/asset"
	"assetprep/internal/config"
	"assetprep/internal/discovery"
	"assetprep/internal/fileutil"
	"assetprep/internal/logging"
	"assetprep/internal/media"
	"assetprep/internal/pipeline"
	"assetprep/internal/services"
	"assetprep/internal/status"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List discovered assets with their VRAM estimates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Paths.AssetDir
			if folder != "" {
				if dir, err = config.ExpandPath(folder); err != nil {
					return fmt.Errorf("resolve folder: %w", err)
				}
			}
			found, err := discovery.Scan(dir)
			if err != nil {
				return services.Wrap(services.ErrNotFound, "scan", "list assets", "Asset folder could not be scanned", err)
			}

			opts, err := pipeline.OptionsFromConfig(cfg, logging.NewNop(), nil, "")
			if err != nil {
				return err
			}
			entries := make([]status.ScanEntry, 0, len(found))
			var total float64
			for _, f := range found {
				entry := status.ScanEntry{ID: f.ID, Kind: f.Kind, Path: f.Path}
				info, err := media.Inspect(cmd.Context(), f.Path)
				if err != nil {
					entry.Err = err
					entries = append(entries, entry)
					continue
				}
				entry.Frames = info.FrameCount()
				entry.Width = info.Width
				entry.Height = info.Height
				entry.EstimatedBytes = pipeline.EstimateBytes(info)
				if info.Kind == asset.KindAnimation {
					entry.Archived = fileutil.Exists(opts.Engine.CompressedPath(asset.Record{ID: f.ID, Kind: info.Kind}))
				}
				total += entry.EstimatedBytes
				entries = append(entries, entry)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No assets found in %s\n", dir)
				return nil
			}
			fmt.Fprintln(out, status.ScanTable(entries))
			kind, msg := statusOK, "fits the budget"
			if total > cfg.MaxVRAMBytes() {
				kind, msg = statusWarn, "exceeds the budget; later assets will load lazily"
			}
			newReporter(out).line("Estimate", kind, "%s of %s %s",
				status.Bytes(total, 1), status.Bytes(cfg.MaxVRAMBytes(), 1), msg)
			return nil
		},
	}

	cmd.Flags().StringVarP(&folder, "dir", "d", "", "Scan this folder instead of paths.asset_dir")
	return cmd
}
