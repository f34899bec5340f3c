package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/ragqa/app"
	"github.com/upb/ragqa/routes"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question answering API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.loadConfig(ctx)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("starting ragqa server",
				zap.String("environment", cfg.Environment),
				zap.String("address", cfg.Server.Address()))

			deps, err := app.NewDependencies(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to initialize dependencies", zap.Error(err))
				return err
			}

			ln, err := net.Listen("tcp", cfg.Server.Address())
			if err != nil {
				_ = deps.Close(context.Background())
				return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address(), err)
			}
			return serve(ctx, deps, ln)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides PORT)")
	return cmd
}

// serve runs the API on ln until ctx is done, then shuts the server and
// the dependencies down within the configured timeout.
func serve(ctx context.Context, deps *app.Dependencies, ln net.Listener) error {
	cfg := deps.Config
	logger := deps.Logger

	srv := &http.Server{
		Handler:           routes.SetupRoutes(deps),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		logger.Error("server error", zap.Error(serveErr))
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("dependency shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return serveErr
}
