package commands

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/redhawk/appfactory/pkg/deploy"
)

func newDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List devices registered with a running appfactoryd",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(apiAddr + "/devices")
			if err != nil {
				return fmt.Errorf("devices request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				var out map[string]interface{}
				_ = json.NewDecoder(resp.Body).Decode(&out)
				return fmt.Errorf("devices request failed (%d): %v", resp.StatusCode, out["error"])
			}

			var nodes []*deploy.DeviceNode
			if err := json.NewDecoder(resp.Body).Decode(&nodes); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(nodes)
			}

			for _, n := range nodes {
				fmt.Printf("%-24s %-10s executable=%-5v usage=%s\n", n.Identifier, n.Label, n.Executable, n.UsageState)
			}
			return nil
		},
	}
	return cmd
}
