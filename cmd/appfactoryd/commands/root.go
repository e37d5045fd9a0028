package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool
	apiAddr    string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "appfactoryd",
		Short: "Application Factory daemon",
		Long: `appfactoryd plans, places, and launches waveform applications across a
domain of registered devices: resolving implementations, allocating
device capacity, loading and executing components, then wiring and
publishing the result as a running application.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "daemon config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://localhost:8080", "appfactoryd API address, for client subcommands")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newDevicesCommand())
	rootCmd.AddCommand(newBackupCommand())
	rootCmd.AddCommand(newRestoreCommand())

	return rootCmd
}
