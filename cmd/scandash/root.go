package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hakim/scandash/internal/config"
	"github.com/hakim/scandash/internal/slogger"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "scandash",
	Short: "Launch web vulnerability scans and review their findings",
	Long: `ScanDash drives an external web vulnerability scanner. It launches a scan
against a target URL, polls it until it completes or fails, and keeps a history
of completed scans with their findings bucketed by risk level.

Findings can be reviewed from the command line, exported as markdown reports,
compared between runs, or browsed through the HTTP API started by 'serve'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		skipConfig := map[string]bool{
			"init":    true,
			"help":    true,
			"version": true,
		}

		if skipConfig[cmd.Name()] {
			slogger.Init(logLevel("info"))
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		slogger.Init(logLevel(cfg.LogLevel))
		return nil
	},
}

func logLevel(configured string) string {
	if verbose {
		return "debug"
	}
	return configured
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: search ., ./configs, ~/.config/scandash)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")

	rootCmd.Version = "0.1.0-dev"
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
