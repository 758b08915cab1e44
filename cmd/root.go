// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/FLUSEC-25-26/flusec-cloud/internal/config"
	"github.com/FLUSEC-25-26/flusec-cloud/internal/observability"
)

var (
	cfgFile string
)

// contextKey scopes the values this package stores on a command context.
type contextKey string

// configKey is where PersistentPreRunE parks the validated configuration for
// subcommands to pick up.
const configKey contextKey = "config"

// NewRootCommand builds the root command with all subcommands attached. Each
// call returns a fresh instance so executions never share Cobra state.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flusec-cloud",
		Short: "FluSec Cloud is the findings ingestion backend for the FluSec extension.",
		// Version is dynamically set at build time. See cmd/version.go.
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This function runs before any command, setting up config and logging.
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				// Initialize a fallback logger if config loading fails early.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "flusec-cloud"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "flusec-cloud"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Info("Starting FluSec Cloud", zap.String("version", Version))

			// Store the validated config on the command context for subcommands.
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// configFromContext retrieves the configuration parked by PersistentPreRunE.
func configFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration missing from command context")
	}
	return cfg, nil
}

// Execute runs the root command with the given signal-aware context.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		return err
	}
	return nil
}

// initializeConfig points viper at the config file and FLUSEC_* environment
// variables, then binds any recognized command line overrides.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FLUSEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and environment variables.
	}

	// Bind flags to their corresponding Viper keys so command line values
	// correctly override the config file and environment variables.
	if flag := cmd.Flags().Lookup("listen"); flag != nil {
		if err := v.BindPFlag("server.listen_addr", flag); err != nil {
			return err
		}
	}
	return nil
}
