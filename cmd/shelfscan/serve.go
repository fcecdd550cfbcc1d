package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/shelfscan/api"
	"github.com/use-agent/shelfscan/jobs"
	"github.com/use-agent/shelfscan/run"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scrape job API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("host", cfg.Server.Host, "Listen host")
	serveCmd.Flags().Int("port", cfg.Server.Port, "Listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg.Server.Host, _ = cmd.Flags().GetString("host")
	cfg.Server.Port, _ = cmd.Flags().GetInt("port")

	slog.Info("shelfscan starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"auth", cfg.Auth.Enabled,
		"maxRunning", cfg.Jobs.MaxRunning,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled but SHELFSCAN_API_KEYS is empty; API is open")
	}

	store := jobs.NewStore(cfg.Jobs.TTL, cfg.Jobs.MaxRunning)
	defer store.Close()

	startTime := time.Now()
	router := api.NewRouter(cfg, store, run.NewRunner(cfg), startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	slog.Info("shelfscan stopped")
	return nil
}
