package main

import (
	"fmt"
	"os"

	"onebarn/pkg/config"
	"onebarn/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "camerabridge",
	Short: "OneBarn camera bridge client",
	Long: `Connects the OneBarn dashboard to the local video bridge: health checks
with backoff, camera discovery, stream management and live events.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "config file (defaults are used when it does not exist)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	rootCmd.AddCommand(serveCmd, probeCmd, discoverCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format)
}
