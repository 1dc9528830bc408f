// Package cmd defines and implements the CLI commands for the jobscout
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/app"
	"github.com/autoapply/jobscout/internal/config"
	"github.com/autoapply/jobscout/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType struct{}

// newApp is the application factory. It is a variable so tests can replace
// it with a mock factory.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobscout",
		Short: "Job-board scraping service for the auto-apply platform.",
		Long: `jobscout discovers job listings across Indian job boards (Naukri,
LinkedIn, Instahyre) and API providers, with checkpointed resumable crawls,
anti-detection browser sessions, and per-platform rate limiting.`,

		// Build the service container after flags are parsed but before the
		// subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKeyType{}, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKeyType{}).(*app.App); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (env JOBSCOUT_* overrides)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// resolveApp fetches the service container placed in the context by the root
// command.
func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKeyType{}).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return a, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
