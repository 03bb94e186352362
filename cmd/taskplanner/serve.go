package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, logger, true)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()

			report, err := a.seed(ctx, cfg.Seed.File)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			logger.Info("seed applied",
				"access_codes", report.AccessCodes,
				"team", report.Team,
				"task_templates", report.TaskTemplates,
			)

			logger.Info("taskplanner API listening",
				"addr", cfg.HTTP.Addr(),
				"backend", cfg.Storage.Backend,
				"external_tasks", a.tasks.ExternalConfigured(),
			)
			return serve(ctx, a.router(), cfg.HTTP.Addr(), logger)
		},
	}
}

// serve runs e until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, e *echo.Echo, addr string, logger *slog.Logger) error {
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	// Assistant calls can take up to a minute.
	e.Server.WriteTimeout = 90 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
