package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"assetprep/internal/logging"
	"assetprep/internal/pipeline"
	"assetprep/internal/preflight"
	"assetprep/internal/status"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories and stage collaborators",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := pipeline.OptionsFromConfig(cfg, logging.NewNop(), nil, "")
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, opts.Engine, opts.Materializer)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, status.PreflightTable(results))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			newReporter(out).line("Doctor", statusOK, "all %d checks passed", len(results))
			return nil
		},
	}
}
