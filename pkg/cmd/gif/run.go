package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/graph-unlearning-service/pkg/config"
	"github.com/gilchrisn/graph-unlearning-service/pkg/datastore"
	"github.com/gilchrisn/graph-unlearning-service/pkg/experiment"
)

func newRunCmd(state *cliState) *cobra.Command {
	var saveReport bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an unlearning experiment on a dataset directory",
		Example: `  gif run --dataset_dir ./data/cora --unlearn_task edge --unlearn_ratio 0.05
  gif run --config experiment.yaml --num_runs 5 --solver cg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := cfg.CreateLogger()
			settings, err := cfg.ExperimentSettings(logger)
			if err != nil {
				return err
			}

			store := datastore.NewFileStore(cfg.DatasetDir(), logger)

			var opts []experiment.Option
			if saveReport {
				opts = append(opts, experiment.WithReportPersistence())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := experiment.NewRunner(settings, store, logger, opts...).Run(ctx)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(report)
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&saveReport, "save_report", true, "write the report into the dataset directory")

	return cmd
}
