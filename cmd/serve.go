// File: cmd/serve.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FLUSEC-25-26/flusec-cloud/internal/observability"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/service"
)

// buildComponents is swappable so tests can stub the full component stack.
var buildComponents = service.Build

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the findings ingestion HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			components, err := buildComponents(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize ingestion components: %w", err)
			}
			defer components.Shutdown()

			logger.Info("Starting ingestion server",
				zap.String("listen_addr", cfg.Server().ListenAddr),
				zap.String("github_api", cfg.GitHub().APIBaseURL),
				zap.Bool("audit_enabled", cfg.Audit().Enabled),
			)

			// Blocks until the signal context is cancelled or the server fails.
			if err := components.API.Run(ctx); err != nil {
				logger.Error("Server failed", zap.Error(err))
				return err
			}

			logger.Info("Server exited cleanly.")
			return nil
		},
	}

	// Server override flags.
	serveCmd.Flags().StringP("listen", "l", "", "Listen address for the HTTP server. (Overrides config/env)")

	return serveCmd
}
