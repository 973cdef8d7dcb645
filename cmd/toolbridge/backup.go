package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"toolbridge/internal/config"

	"github.com/spf13/cobra"
)

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of toolbridge data (config + audit log + data directory)",
		Long: `Creates a compressed .tar.gz archive containing the config file, the audit
database, and every file under the data directory. The backup is timestamped
by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCmdConfig()
			if err != nil {
				return err
			}
			cfgPath := configPath
			if cfgPath == "" {
				cfgPath = config.DefaultConfigPath()
			}

			if outputPath == "" {
				backupDir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("toolbridge-backup-%s.tar.gz", ts))
			}

			entries, err := collectBackupEntries(cfg, cfgPath)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no files to backup (config: %s, data: %s)", cfgPath, cfg.Files.DataDir)
			}

			if err := createTarGz(outputPath, entries); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			fmt.Printf("Backup created: %s\n", outputPath)
			fmt.Printf("Files included: %d\n", len(entries))
			for _, e := range entries {
				info, _ := os.Stat(e.path)
				size := int64(0)
				if info != nil {
					size = info.Size()
				}
				fmt.Printf("  - %s (%s)\n", e.name, humanSize(size))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: ~/.toolbridge/backups/toolbridge-backup-<timestamp>.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore toolbridge data from a backup archive",
		Long: `Restores the config file, audit database, and data directory contents from
a .tar.gz archive created by 'toolbridge backup'. Unrecognized archive entries
are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCmdConfig()
			if err != nil {
				return err
			}
			cfgPath := configPath
			if cfgPath == "" {
				cfgPath = config.DefaultConfigPath()
			}

			if !force {
				existing := false
				if _, err := os.Stat(cfgPath); err == nil {
					existing = true
				}
				if _, err := os.Stat(cfg.Files.DataDir); err == nil {
					existing = true
				}
				if existing {
					fmt.Printf("WARNING: This will overwrite existing data.\n")
					fmt.Printf("  Config:   %s\n", cfgPath)
					fmt.Printf("  Data dir: %s\n", cfg.Files.DataDir)
					fmt.Printf("  Audit DB: %s\n", cfg.Audit.DBPath)
					fmt.Printf("Use --force to skip this warning.\n")
					return fmt.Errorf("restore aborted (use --force to proceed)")
				}
			}

			restored, err := extractTarGz(args[0], cfg, cfgPath)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			fmt.Printf("Restore completed from: %s\n", args[0])
			fmt.Printf("Files restored: %d\n", len(restored))
			for _, f := range restored {
				fmt.Printf("  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data without warning")
	return cmd
}

// backupEntry pairs an on-disk file with its name inside the archive.
type backupEntry struct {
	path string
	name string
}

func collectBackupEntries(cfg *config.Config, cfgPath string) ([]backupEntry, error) {
	var entries []backupEntry

	if _, err := os.Stat(cfgPath); err == nil {
		entries = append(entries, backupEntry{path: cfgPath, name: "config.json"})
	}

	// Audit database plus its WAL and SHM files if present.
	for _, suffix := range []string{"", "-wal", "-shm"} {
		p := cfg.Audit.DBPath + suffix
		if _, err := os.Stat(p); err == nil {
			entries = append(entries, backupEntry{path: p, name: "audit.db" + suffix})
		}
	}

	dataDir := cfg.Files.DataDir
	err := filepath.WalkDir(dataDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		// The audit database may live inside the data dir; it is archived above.
		if p == cfg.Audit.DBPath || strings.HasPrefix(p, cfg.Audit.DBPath+"-") {
			return nil
		}
		rel, err := filepath.Rel(dataDir, p)
		if err != nil {
			return err
		}
		entries = append(entries, backupEntry{path: p, name: "data/" + filepath.ToSlash(rel)})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return entries, nil
}

func createTarGz(outputPath string, entries []backupEntry) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	for _, e := range entries {
		if err := addFileToTar(tarWriter, e); err != nil {
			return fmt.Errorf("add %s: %w", e.path, err)
		}
	}

	return nil
}

func addFileToTar(tw *tar.Writer, e backupEntry) error {
	file, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = e.name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tw, file)
	return err
}

func extractTarGz(archivePath string, cfg *config.Config, cfgPath string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("not a valid gzip file: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	var restored []string

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		targetPath, err := restoreTarget(header.Name, cfg, cfgPath)
		if err != nil {
			return nil, err
		}
		if targetPath == "" {
			fmt.Printf("  skipping unrecognized entry: %s\n", header.Name)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return nil, err
		}

		outFile, err := os.Create(targetPath)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", targetPath, err)
		}
		if _, err := io.Copy(outFile, tarReader); err != nil {
			outFile.Close()
			return nil, fmt.Errorf("extract %s: %w", targetPath, err)
		}
		outFile.Close()

		restored = append(restored, targetPath)
	}

	return restored, nil
}

// restoreTarget maps an archive entry name to its on-disk destination. Data
// entries must stay under the data directory; an empty return means skip.
func restoreTarget(name string, cfg *config.Config, cfgPath string) (string, error) {
	name = path.Clean(filepath.ToSlash(name))
	switch {
	case name == "config.json":
		return cfgPath, nil
	case name == "audit.db" || name == "audit.db-wal" || name == "audit.db-shm":
		return cfg.Audit.DBPath + strings.TrimPrefix(name, "audit.db"), nil
	case strings.HasPrefix(name, "data/"):
		rel := strings.TrimPrefix(name, "data/")
		target := filepath.Join(cfg.Files.DataDir, filepath.FromSlash(rel))
		within, err := filepath.Rel(cfg.Files.DataDir, target)
		if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("archive entry escapes the data directory: %s", name)
		}
		return target, nil
	default:
		return "", nil
	}
}

func humanSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
