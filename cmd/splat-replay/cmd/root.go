// Package cmd implements the CLI commands for splat-replay.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saw4405/splat-replay/internal/config"
	"github.com/saw4405/splat-replay/internal/observability"
	"github.com/saw4405/splat-replay/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "splat-replay",
	Short:   "Automatic gameplay capture, editing and upload daemon",
	Version: version.Short(),
	Long: `splat-replay watches a capture device, records battles through an
external recorder, analyses frames for match metadata, and edits and
uploads the results on a schedule.

The daemon exposes a REST API for manual recorder control, asset
management, and server-sent event streams of recording progress.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./splat-replay.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json, console)")
}

// loadConfig reads configuration and applies any explicitly-set logging
// flags on top. Flags are not bound to viper so the priority stays
// CLI flag > env var > config file > default.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		cfg.Logging.Level = strings.ToLower(level)
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ := rootCmd.PersistentFlags().GetString("log-format")
		cfg.Logging.Format = strings.ToLower(format)
	}
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}
	return cfg, nil
}

// initLogging builds the process logger and installs it as the slog
// default so library code logging through slog.Default lands in the
// same stream.
func initLogging(cfg config.LoggingConfig) *slog.Logger {
	logger := observability.NewLoggerWithWriter(cfg, os.Stderr)
	slog.SetDefault(logger)
	return logger
}
