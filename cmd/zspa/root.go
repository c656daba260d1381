package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/0x-stone/zspa/internal/config"
	"github.com/0x-stone/zspa/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "zspa",
	Short: "zspa is a verified private donation agent",
	Long: `zspa guides donors from a free-form message to a shielded ZEC donation.
Every inference step is checked against its TEE attestation and streamed to the client.`,
	SilenceUsage: true,
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
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config")
}

// loadConfig reads the config named by --config and builds the logger.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(level), nil
}
