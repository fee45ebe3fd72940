package main

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matsen/photomend/internal/config"
	"github.com/matsen/photomend/internal/library"
	"github.com/spf13/cobra"
)

var backupDir string

func init() {
	backupCmd.Flags().StringVar(&backupDir, "dir", "", "Directory to write the backup into (default: config backup_dir, then the library's database directory)")
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup [LIBRARY]",
	Short: "Back up the library database",
	Long: `Copy Photos.sqlite and its -wal and -shm files into a new timestamped
directory. Quit Photos first so the copy is consistent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackup,
}

// BackupResponse is the response for the backup command.
type BackupResponse struct {
	*library.BackupResult
	Size string `json:"size"`
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	lib := mustFindLibrary(libraryArg(args))
	mustNotBeRunning(cmd)

	dir := backupDir
	if dir == "" {
		dir = cfg.BackupDir
	}
	res, err := library.Backup(lib, config.ExpandPath(dir), time.Now())
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	size := humanize.Bytes(uint64(res.Bytes))
	if humanOutput {
		outputHuman("Backed up %d files (%s) to %s\n", len(res.Files), size, res.Dir)
		return nil
	}
	return outputJSON(BackupResponse{BackupResult: res, Size: size})
}
