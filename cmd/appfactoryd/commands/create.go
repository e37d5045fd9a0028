package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newCreateCommand() *cobra.Command {
	var (
		sadPath string
		name    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Deploy an assembly against a running appfactoryd",
		Long: `Submit a create request to a running appfactoryd daemon's HTTP API,
launching the waveform application described by the assembly descriptor
at --sad.`,
		Example: `  appfactoryd create --sad /domain/waveforms/my-waveform.sad.cue --name my-waveform`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(createAPIRequest{SADPath: sadPath, Name: name})
			if err != nil {
				return fmt.Errorf("encode create request: %w", err)
			}

			resp, err := http.Post(apiAddr+"/applications", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			defer resp.Body.Close()

			var out map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			if resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("create failed (%d): %v", resp.StatusCode, out["error"])
			}

			fmt.Printf("Application created: %v\n", out["appId"])
			return nil
		},
	}

	cmd.Flags().StringVar(&sadPath, "sad", "", "path to the software assembly descriptor")
	cmd.Flags().StringVar(&name, "name", "", "application name")
	_ = cmd.MarkFlagRequired("sad")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
