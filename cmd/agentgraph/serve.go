package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/agentgraph/internal/cli"
	httpAdapter "github.com/aretw0/agentgraph/pkg/adapters/http"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Exposes the agent over HTTP: POST /runs, GET /runs/{chatID}, SSE step events, /graph, /metrics and /health.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig(configPath(cmd))
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		// Servers log JSON unless the config says otherwise.
		if !cmd.Flags().Changed("config") && cfg.Log.Format == "text" {
			cfg.Log.Format = "json"
		}
		logger, err := cli.NewLogger(cfg.Log, debugFlag(cmd))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stack, err := cli.NewStack(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		srv := &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: httpAdapter.NewHandler(stack.Engine, stack.Sessions,
				httpAdapter.WithLogger(logger),
				httpAdapter.WithMetrics(stack.Metrics),
				httpAdapter.WithGraph(stack.Engine.Graph(nil)),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "address", srv.Addr, "store", cfg.Store.Kind, "provider", cfg.Provider.Kind)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return err
		case <-ctx.Done():
			logger.Info("shutdown started")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				return errors.Join(err, srv.Close())
			}
			logger.Info("HTTP server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides http.addr)")
}
