package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/api"
	"github.com/autoapply/jobscout/internal/dispatcher"
)

// serverShutdownGrace bounds how long in-flight requests get on shutdown.
const serverShutdownGrace = 10 * time.Second

// newServeCmd creates the 'serve' subcommand hosting the HTTP API.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP API server",
		Long: `Serves the scraping API: scrape submission and status under /v1,
health probes, and Prometheus metrics. Scrapes run as background jobs and
survive until shutdown.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := a.Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := a.Config()
			d := dispatcher.New(a.Runner(), cfg.Scraper.Concurrency, cfg.Scraper.QueueDepth, logger)
			d.Start(ctx)

			srv := api.NewServer(a.Tracker(), d, a.JobLister(), cfg, logger)
			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", zap.String("addr", httpServer.Addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			case <-ctx.Done():
			}

			logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownGrace)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http server shutdown: %w", err)
			}
			d.Wait()
			return nil
		},
	}
}
