package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/services"

	"github.com/spf13/cobra"
)

var discoverTenant string

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the cameras the dashboard would show for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Discovery from the CLI stays local: no mirror or MQTT fan-out.
		cfg.Redis.Enabled = false
		cfg.MQTT.Enabled = false

		zapLogger := newLogger(cfg)
		defer zapLogger.Sync()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		st := newStack(ctx, cfg, nil, zapLogger.Sugar())
		defer st.close()

		camBridge, err := st.buildBridge(ctx, domain.TenantID(discoverTenant),
			services.WithBridgeAddress(bridgeHost, bridgePort))
		if err != nil {
			return err
		}
		defer camBridge.Destroy()

		res, err := camBridge.DiscoverCameras(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"cameras":      res.Cameras,
				"usedFallback": res.UsedFallback,
			})
		}

		if res.UsedFallback {
			fmt.Println("Bridge unavailable, showing demo cameras")
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMODEL\tSTATUS\tPTZ\tADDRESS")
		fmt.Fprintln(w, "--\t----\t-----\t------\t---\t-------")
		for _, cam := range res.Cameras {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
				cam.ID,
				cam.Name,
				cam.Model,
				cam.Status,
				cam.Capabilities.PTZ,
				cam.Address,
			)
		}
		return w.Flush()
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverTenant, "tenant", "local", "tenant (barn) to discover cameras for")
}
