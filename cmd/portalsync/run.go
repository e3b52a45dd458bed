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

	"portalsync/internal/sched"
	"portalsync/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the portalsync daemon",
	Long: `Run the daemon: the cron scheduler drives the sync and expiry jobs
and the HTTP API serves on-demand triggers, event listing, status and
metrics.

Examples:
  portalsync run
  portalsync run --config /etc/portalsync/config.yaml`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}

	scheduler := sched.New(a.registry, a.log)
	if err := scheduler.Add("sync", a.cfg.Sync.Cron); err != nil {
		return err
	}
	if err := scheduler.Add("expiry", a.cfg.Sync.ExpiryCron); err != nil {
		return err
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           server.New(a.engine, a.registry, a.log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Listen).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		a.log.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("http shutdown incomplete")
	}

	// Let in-flight scheduled jobs finish before exiting.
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		a.log.Warn().Msg("scheduled jobs still running at shutdown deadline")
	}

	a.log.Info().Msg("daemon stopped")
	return nil
}
