package commands

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/redhawk/appfactory/pkg/stores"
)

func newBackupCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup the deployment store",
		Long: `Create a hot backup of appfactoryd's deployment store: its deployment
history, component placement records, device-state cache, and audit
trail, as a single gzip-compressed tar archive.`,
		Example: `  appfactoryd backup --out appfactoryd-backup.tar.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadDaemonConfig(configPath)
			if err != nil {
				return err
			}
			return runBackup(cmd.Context(), cfg, outFile)
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "appfactoryd-backup.tar.gz", "backup output file")
	return cmd
}

func runBackup(ctx context.Context, cfg *DaemonConfig, outFile string) error {
	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.StorePath})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	tmpFile, err := os.CreateTemp("", "appfactoryd-backup-*.db")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	staged := tmpFile.Name()
	tmpFile.Close()
	os.Remove(staged)
	defer os.Remove(staged)

	if err := store.Backup(ctx, staged); err != nil {
		return fmt.Errorf("backup store: %w", err)
	}

	if err := writeBackupArchive(outFile, staged); err != nil {
		return err
	}

	log.Info().Str("out", outFile).Str("store", cfg.StorePath).Msg("backup created")
	fmt.Printf("Backup written to %s\n", outFile)
	return nil
}

func writeBackupArchive(outFile, storeSnapshotPath string) error {
	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("create backup archive: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	return addFileToTar(tw, storeSnapshotPath, "store.db")
}

func addFileToTar(tw *tar.Writer, localPath, archiveName string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", localPath, err)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("build tar header for %q: %w", localPath, err)
	}
	hdr.Name = archiveName

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header for %q: %w", localPath, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", localPath, err)
	}
	defer src.Close()

	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("write %q into archive: %w", localPath, err)
	}
	return nil
}

// extractBackupArchive reads the store.db member out of a backup archive
// created by writeBackupArchive and writes it to destPath.
func extractBackupArchive(archivePath, destPath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open backup archive %q: %w", archivePath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("backup archive %q contains no store.db member", archivePath)
		}
		if err != nil {
			return fmt.Errorf("read tar stream: %w", err)
		}
		if filepath.Base(hdr.Name) != "store.db" {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return fmt.Errorf("prepare restore destination: %w", err)
		}
		out, err := os.Create(destPath)
		if err != nil {
			return fmt.Errorf("create %q: %w", destPath, err)
		}
		defer out.Close()

		if _, err := io.Copy(out, tr); err != nil {
			return fmt.Errorf("write %q: %w", destPath, err)
		}
		return nil
	}
}
