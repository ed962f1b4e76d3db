// Package main is the entry point of the guilddash backend: the OAuth proxy
// and configuration API behind the guild dashboard.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/config"
	"github.com/parsascontentcorner/guilddash/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "guilddash",
	Short: "Discord OAuth proxy and guild configuration API",
	Long: `guilddash signs dashboard users in with Discord, keeps their sessions
and serves the guild channel, role and configuration endpoints the dashboard
edits bot settings through.`,
	SilenceUsage: true,
	// Without a subcommand the server starts.
	RunE: runServe,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger every command starts from.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, log, nil
}
