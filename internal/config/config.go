package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/matsen/photomend/internal/bookmark"
)

// ErrUnknownKey is returned for config keys that cannot be read or set.
var ErrUnknownKey = errors.New("unknown config key")

// Settable keys, in display order.
const (
	KeyLibrary       = "library"
	KeyBackupDir     = "backup_dir"
	KeySecurityScope = "security_scope"
)

// ValidKeys lists the keys accepted by Get and Set.
var ValidKeys = []string{KeyLibrary, KeyBackupDir, KeySecurityScope}

// Get returns the value of a scalar config key.
func (c *GlobalConfig) Get(key string) (string, error) {
	switch key {
	case KeyLibrary:
		return c.Library, nil
	case KeyBackupDir:
		return c.BackupDir, nil
	case KeySecurityScope:
		return c.SecurityScope, nil
	}
	return "", fmt.Errorf("%w: %s (valid: %s)", ErrUnknownKey, key, strings.Join(ValidKeys, ", "))
}

// Set validates value and stores it under key. An empty value clears the key.
func (c *GlobalConfig) Set(key, value string) error {
	switch key {
	case KeyLibrary:
		if err := ValidateLibrary(value); err != nil {
			return err
		}
		c.Library = value
	case KeyBackupDir:
		if err := ValidateBackupDir(value); err != nil {
			return err
		}
		c.BackupDir = value
	case KeySecurityScope:
		if _, err := bookmark.ParseScopePolicy(value); err != nil {
			return err
		}
		c.SecurityScope = value
	default:
		return fmt.Errorf("%w: %s (valid: %s)", ErrUnknownKey, key, strings.Join(ValidKeys, ", "))
	}
	return nil
}

// Validate checks every field of a loaded config.
func (c *GlobalConfig) Validate() error {
	if _, err := bookmark.ParseScopePolicy(c.SecurityScope); err != nil {
		return err
	}
	for i, r := range c.Rules {
		if !filepath.IsAbs(ExpandPath(r.From)) || !filepath.IsAbs(ExpandPath(r.To)) {
			return fmt.Errorf("rules[%d]: from and to must be absolute paths", i)
		}
	}
	for i, v := range c.Volumes {
		if v.MountPoint == "" {
			return fmt.Errorf("volumes[%d]: mount_point is required", i)
		}
		if v.UUID != "" {
			if _, err := uuid.Parse(v.UUID); err != nil {
				return fmt.Errorf("volumes[%d]: invalid uuid %q", i, v.UUID)
			}
		}
	}
	return nil
}

// ValidateLibrary checks that the library path exists and is a directory.
func ValidateLibrary(path string) error {
	if path == "" {
		return nil // Empty is allowed (not yet configured)
	}
	return validateDir(path)
}

// ValidateBackupDir checks that the backup directory exists.
func ValidateBackupDir(path string) error {
	if path == "" {
		return nil // Empty defaults to the library's database directory
	}
	return validateDir(path)
}

func validateDir(path string) error {
	expandedPath := ExpandPath(path)

	info, err := os.Stat(expandedPath)
	if err != nil {
		return fmt.Errorf("path does not exist: %s", expandedPath)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", expandedPath)
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
