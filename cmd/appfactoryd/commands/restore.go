package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRestoreCommand() *cobra.Command {
	var (
		backupFile string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the deployment store from a backup",
		Long: `Restore appfactoryd's deployment store from an archive created by
"appfactoryd backup". The daemon must not be running against the target
store path while this runs.`,
		Example: `  appfactoryd restore --from appfactoryd-backup.tar.gz --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadDaemonConfig(configPath)
			if err != nil {
				return err
			}
			return runRestore(cfg, backupFile, force)
		},
	}

	cmd.Flags().StringVar(&backupFile, "from", "", "backup archive to restore from")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite the existing store without confirmation")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runRestore(cfg *DaemonConfig, backupFile string, force bool) error {
	if _, err := os.Stat(backupFile); err != nil {
		return fmt.Errorf("backup file %q not accessible: %w", backupFile, err)
	}

	if _, err := os.Stat(cfg.StorePath); err == nil && !force {
		return fmt.Errorf("store %q already exists; rerun with --force to overwrite", cfg.StorePath)
	}

	if err := extractBackupArchive(backupFile, cfg.StorePath); err != nil {
		return fmt.Errorf("restore store: %w", err)
	}

	log.Info().Str("from", backupFile).Str("store", cfg.StorePath).Msg("store restored")
	fmt.Printf("Restored %s from %s\n", cfg.StorePath, backupFile)
	return nil
}
