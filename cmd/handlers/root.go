package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"roundup/internal/config"
	"roundup/internal/logger"
)

var (
	cfgFile     string
	sourcesFile string
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "roundup",
		Short: "Roundup aggregates community wiki and chat activity into an email digest.",
		Long: `Roundup scrapes configured Confluence pages and Zulip streams,
summarizes what changed, and delivers a ranked digest email.

Sources are listed in a YAML file (see config/sources.yaml); credentials
come from the environment or a .env file.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&sourcesFile, "sources", "", "sources file (default is ./config/sources.yaml)")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewSourcesCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration for a subcommand and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile, sourcesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.LogLevel)
	return cfg, nil
}
