package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"log-sentinel/internal/api"
	"log-sentinel/internal/pipeline"
	"log-sentinel/internal/utils"

	"github.com/prometheus/common/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Tail the log source and serve the API",
		Long: `Follow the configured log file, detect and store alerts, and serve the query,
stats, metrics and live stream endpoints until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, cleanup, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, config, logger)
		},
	}
}

// runServe blocks until ctx is done, then drains the HTTP server and the
// tailer and closes the store.
func runServe(ctx context.Context, config *utils.Config, logger *logrus.Logger) error {
	svc, err := newService(config, logger, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handlers := api.NewHandlers(svc.store, svc.engine, svc.feed, logger)
	srv := &http.Server{
		Handler:           api.NewRouter(handlers, svc.metrics.Handler()),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Streams stay open indefinitely, so no WriteTimeout. Cancelling
		// runCtx ends them.
		BaseContext: func(net.Listener) context.Context { return runCtx },
	}

	ln, err := net.Listen("tcp", config.Application.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.Application.ListenAddr, err)
	}

	logger.WithFields(logrus.Fields{
		"version": version.Version,
		"addr":    ln.Addr().String(),
		"source":  config.Source.Path,
		"storage": config.Storage.Driver,
	}).Info("log-sentinel starting")

	tailer := pipeline.NewTailer(pipeline.TailerConfig{
		Path:         config.Source.Path,
		PollInterval: config.PollInterval(),
		RetryDelay:   config.RetryDelay(),
		StartAtEnd:   config.StartAtEnd(),
	}, svc.metrics, logger)

	tailDone := make(chan error, 1)
	go func() {
		tailDone <- tailer.Run(runCtx, func(ctx context.Context, line string) {
			svc.processor.Process(ctx, line)
		})
	}()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	case err := <-tailDone:
		tailDone <- err
		if err != nil {
			runErr = fmt.Errorf("tailer failed: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}

	if err := <-tailDone; err != nil && runErr == nil {
		runErr = fmt.Errorf("tailer failed: %w", err)
	}

	logger.Info("log-sentinel stopped")
	return runErr
}
