package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"onebarn/internal/infrastructure/bridge"

	"github.com/spf13/cobra"
)

var (
	bridgeHost string
	bridgePort int
)

type probeResult struct {
	Bridge    string `json:"bridge"`
	Reachable bool   `json:"reachable"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check once whether the video bridge answers with a frame",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		zapLogger := newLogger(cfg)
		defer zapLogger.Sync()

		opts := bridgeOptions(cfg, cfg.Bridge.Host, cfg.Bridge.Port)
		if bridgeHost != "" {
			opts.Host = bridgeHost
		}
		if bridgePort > 0 {
			opts.Port = bridgePort
		}
		client := bridge.NewClient(opts, zapLogger.Sugar())

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		start := time.Now()
		probeErr := client.Probe(ctx)

		res := probeResult{
			Bridge:    opts.BaseURL(),
			Reachable: probeErr == nil,
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if probeErr != nil {
			res.Error = probeErr.Error()
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
		} else if res.Reachable {
			fmt.Printf("Bridge at %s is reachable (%dms)\n", res.Bridge, res.LatencyMs)
		} else {
			fmt.Printf("Bridge at %s is not reachable: %s\n", res.Bridge, res.Error)
		}

		if probeErr != nil {
			return fmt.Errorf("probe failed")
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{probeCmd, discoverCmd} {
		c.Flags().StringVar(&bridgeHost, "host", "", "bridge host (overrides config)")
		c.Flags().IntVar(&bridgePort, "port", 0, "bridge port (overrides config)")
	}
}
