package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-unlearning-service/pkg/api"
	"github.com/gilchrisn/graph-unlearning-service/pkg/config"
	"github.com/gilchrisn/graph-unlearning-service/pkg/service"
	"github.com/gilchrisn/graph-unlearning-service/pkg/telemetry"
)

func newServeCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the unlearning job API",
		Long: `serve exposes /api/v1/jobs for submitting experiments against datasets
stored next to dataset_dir, plus /metrics for Prometheus.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log.Info().
				Str("address", cfg.ServerAddress()).
				Int("max_workers", cfg.MaxWorkers()).
				Str("dataset_dir", cfg.DatasetDir()).
				Msg("Configuration loaded")

			metrics := telemetry.NewMetrics()
			jobService := service.NewJobService(cfg, service.DirResolver(filepath.Dir(cfg.DatasetDir())), metrics)
			router := api.NewRouter(api.NewHandlers(jobService), metrics.Handler())

			server := &http.Server{
				Addr:         cfg.ServerAddress(),
				Handler:      router,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info().
					Str("address", cfg.ServerAddress()).
					Msg("HTTP server starting")

				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("failed to start server: %w", err)
				}
			case <-ctx.Done():
				log.Info().Msg("Shutdown signal received")
			}

			// Graceful shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			if err := jobService.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("jobs did not stop: %w", err)
			}

			log.Info().Msg("Server shutdown complete")
			return nil
		},
	}

	config.RegisterFlags(cmd.Flags())
	config.RegisterServerFlags(cmd.Flags())

	return cmd
}
