package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-unlearning-service/pkg/config"
)

// cliState is shared by the subcommands of one invocation
type cliState struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:   "gif",
		Short: "Graph influence function unlearning",
		Long: `gif estimates how a trained graph model changes when nodes, edges or
node features are removed, without retraining.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&state.cfgFile, "config", "", "YAML configuration file")

	root.AddCommand(newRunCmd(state))
	root.AddCommand(newGenerateCmd(state))
	root.AddCommand(newServeCmd(state))

	return root
}

// load builds the configuration: defaults, then file, then env, then explicit flags
func (s *cliState) load(cmd *cobra.Command) error {
	s.cfg = config.NewConfig()
	if s.cfgFile != "" {
		if err := s.cfg.LoadFromFile(s.cfgFile); err != nil {
			return err
		}
	}
	if err := s.cfg.BindFlags(cmd.Flags()); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(s.cfg.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)

	return nil
}
