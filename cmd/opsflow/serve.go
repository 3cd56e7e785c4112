package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/petrijr/opsflow"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the event ingestion loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			setGinMode(cfg.Log.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			orch, err := opsflow.New(ctx, cfg, opsflow.WithLogger(logger))
			if err != nil {
				return err
			}
			if err := orch.Start(ctx); err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           orch.HTTPHandler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.InfoContext(ctx, "http_listening", slog.String("addr", cfg.HTTP.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil {
					logger.ErrorContext(ctx, "http_failed", slog.Any("error", err))
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
			defer cancel()

			logger.InfoContext(shutdownCtx, "shutting_down",
				slog.Int("outstanding_runs", orch.Outstanding()),
			)
			return shutdown(shutdownCtx, srv, orch)
		},
	}
	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	return cmd
}

// shutdown drains the orchestrator before the HTTP server. Closing the bus
// ends the dashboard streams, which srv.Shutdown would otherwise wait on
// until ctx expires.
func shutdown(ctx context.Context, srv *http.Server, orch *opsflow.Orchestrator) error {
	orchErr := orch.Shutdown(ctx)
	return errors.Join(orchErr, srv.Shutdown(ctx))
}

// setGinMode keeps gin's route dump and debug warnings out of non-debug
// output.
func setGinMode(level string) {
	if strings.EqualFold(level, "debug") {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}
