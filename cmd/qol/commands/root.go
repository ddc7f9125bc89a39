package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/qolindex/pkg/config"
	"github.com/wonny/qolindex/pkg/logger"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qol",
	Short: "Quality of life index by country, year over year",
	Long: `qol builds a multi-year, per-country quality of life dataset from the
yearly Numbeo rankings and serves it for charting.

Usage:
  go run ./cmd/qol [command]

Examples:
  go run ./cmd/qol collect
  go run ./cmd/qol collect --from 2019 --to 2024
  go run ./cmd/qol show --country "United States" --metric "Safety Index"
  go run ./cmd/qol serve
  go run ./cmd/qol revisions`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
}

// loadRuntime loads config and builds the logger every command shares
func loadRuntime() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}
