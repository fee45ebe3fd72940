package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// BackupResult describes a completed database backup.
type BackupResult struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
	Bytes int64    `json:"bytes"`
}

// backupSuffixes are the SQLite files that together hold the database state.
var backupSuffixes = []string{"", "-wal", "-shm"}

// Backup copies the library database (and its WAL/SHM companions) into a new
// timestamped directory under dir. dir defaults to <lib>/database when empty.
func Backup(lib, dir string, now time.Time) (*BackupResult, error) {
	if dir == "" {
		dir = filepath.Join(lib, DatabaseDir)
	}
	dest := filepath.Join(dir, "photomend-backup-"+now.Format("20060102-150405"))
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("backup directory already exists: %s", dest)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	res := &BackupResult{Dir: dest}
	src := DatabasePath(lib)
	for _, suffix := range backupSuffixes {
		n, err := copyFile(src+suffix, filepath.Join(dest, DatabaseFile+suffix))
		if err != nil {
			if suffix != "" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("backing up %s: %w", filepath.Base(src+suffix), err)
		}
		res.Files = append(res.Files, filepath.Join(dest, DatabaseFile+suffix))
		res.Bytes += n
	}
	return res, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}
