// Package cmd implements the assetsync command line interface.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stenbroen/assetsync/internal/config"
	"github.com/stenbroen/assetsync/pkg/logging"
)

var (
	configFile string
	logLevel   string
	dryRun     bool

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "assetsync",
	Short: "Reconcile device records into the asset inventory",
	Long: `Assetsync collects device records from management and scanning
sources (MDM, SNMP, port scans), resolves which observations describe
the same physical device, classifies each device, and merges the
result into the canonical asset inventory.

Static per-IP overrides always win over anything a source reports.`,
	PersistentPreRun: func(*cobra.Command, []string) {
		configureLogging()
	},
	SilenceUsage: true,
}

// Execute runs the CLI with signal-aware context cancellation.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(config.LoadEnvFiles)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./.assetsync.yaml or $HOME/.assetsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "compute changes without writing them")
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dryRun {
		cfg.DryRun = true
	}
	return cfg, nil
}

func configureLogging() {
	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}

	logging.Configure(&logging.Config{
		Level:  level,
		Format: getEnvOrDefault("LOG_FORMAT", "auto"),
		Output: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
