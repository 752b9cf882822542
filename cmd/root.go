package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rental-manager/internal/config"
	"rental-manager/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:     "rental-manager",
	Short:   "Inventory reservation and finance engine for event equipment rentals",
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Use --help to see available commands.")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the environment config and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return cfg, nil
}
