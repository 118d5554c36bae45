package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/agentflow/internal/cli"
	"github.com/aretw0/agentflow/internal/presentation/tui"
	httpAdapter "github.com/aretw0/agentflow/pkg/adapters/http"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/observability"
	"github.com/aretw0/agentflow/pkg/workflows/codereview"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the engine in server mode, exposing the graph API over HTTP.
The OpenAPI document is served at /openapi.yaml and Prometheus metrics at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("address") {
			cfg.Server.Address, _ = cmd.Flags().GetString("address")
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			tui.PrintBanner(os.Stderr)
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}
		hooks := domain.Combine(metrics.Hooks(), observability.AuditHooks(logger))

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		engine, stores, err := cli.NewEngine(ctx, cfg, logger, hooks)
		if err != nil {
			return err
		}
		defer stores.Close()

		handlerOpts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithGatherer(reg),
			httpAdapter.WithCORSOrigins(cfg.Server.CORSOrigins),
		}
		if cfg.Engine.CodeReview {
			handlerOpts = append(handlerOpts, httpAdapter.WithDefaultGraph(codereview.DefaultGraphID))
		}
		handler, err := httpAdapter.NewHandler(engine, handlerOpts...)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("agentflow server listening",
				"address", srv.Addr, "store", cfg.Store.Backend, "max_steps", cfg.Engine.MaxSteps)
			serverErrors <- srv.ListenAndServe()
		}()

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("shutdown started", "signal", ctx.Signal())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("agentflow server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("address", "a", ":8080", "Address to listen on (overrides config)")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
