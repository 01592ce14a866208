package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-unlearning-service/pkg/config"
	"github.com/gilchrisn/graph-unlearning-service/pkg/datastore"
)

func newGenerateCmd(state *cliState) *cobra.Command {
	opts := datastore.DefaultSyntheticOptions()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic community dataset into dataset_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := state.cfg.DatasetDir()
			opts.Name = filepath.Base(dir)

			graph, err := datastore.Synthetic(opts)
			if err != nil {
				return err
			}

			logger := state.cfg.CreateLogger()
			if err := datastore.NewFileStore(dir, logger).WriteRawData(graph); err != nil {
				return err
			}

			logger.Info().
				Str("dir", dir).
				Int("nodes", graph.NumNodes).
				Int("edges", graph.NumEdges()).
				Int("features", graph.NumFeatures()).
				Int("classes", graph.NumClasses()).
				Msg("Synthetic dataset written")

			_, err = fmt.Fprintln(cmd.OutOrStdout(), dir)
			return err
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.NumNodes, "nodes", opts.NumNodes, "number of nodes")
	f.IntVar(&opts.NumClasses, "classes", opts.NumClasses, "number of classes (communities)")
	f.IntVar(&opts.NumFeatures, "features", opts.NumFeatures, "feature dimension")
	f.Float64Var(&opts.PIn, "p_in", opts.PIn, "edge probability within a class")
	f.Float64Var(&opts.POut, "p_out", opts.POut, "edge probability across classes")
	f.Float64Var(&opts.FeatureSignal, "feature_signal", opts.FeatureSignal, "mean shift of the class feature")
	f.Float64Var(&opts.FeatureNoise, "feature_noise", opts.FeatureNoise, "feature noise standard deviation")
	f.Float64Var(&opts.PredefinedTestRatio, "predefined_test_ratio", opts.PredefinedTestRatio, "store a predefined split with this test ratio (0 disables)")
	f.Uint64Var(&opts.Seed, "generator_seed", opts.Seed, "generator seed")
	f.String(config.KeyDatasetDir, "./data/synthetic", "output directory")
	f.String(config.KeyLogLevel, "info", "log level")

	return cmd
}
