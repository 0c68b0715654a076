// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/clinical-digest/internal/observability"
	"github.com/pdiddy/clinical-digest/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search and export over HTTP",
	Long: `Serve starts the HTTP API:

  POST /api/search         run a search and return results and the document
  GET  /api/search/stream  same, streaming progress as Server-Sent Events
  POST /api/export         render results as a Markdown attachment
  GET  /healthz            liveness
  GET  /metrics            Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :8080)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	srvCfg := cfg.Server
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		srvCfg.Address = addr
	}

	metrics := observability.NewMetrics("clinical_digest")
	p, err := newPipeline(metrics)
	if err != nil {
		return err
	}
	srv := server.New(srvCfg, p, cfg.Literature.MaxResults, logger, server.WithMetrics(metrics))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Dur("timeout", srvCfg.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
