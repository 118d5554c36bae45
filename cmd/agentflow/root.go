package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/agentflow/internal/config"
	"github.com/aretw0/agentflow/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentflow",
	Short: "agentflow executes node graphs that steer themselves through shared state",
	Long: `agentflow runs graphs of registered nodes. Each node reads and writes a shared
state map and picks its successor through the _next_node control key.

Graphs can be created and run over HTTP (serve), as MCP tools (mcp), or once
from the command line (run).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides config)")
}

// loadConfig reads the configuration and applies flag overrides, then builds
// the logger it describes.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format, _ = cmd.Flags().GetString("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.New(level, cfg.Log.Format)
	slog.SetDefault(logger)

	return cfg, logger, nil
}
