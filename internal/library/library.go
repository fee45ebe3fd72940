// Package library locates Photos libraries and guards them before they are rewritten.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// Extension is the bundle extension of a Photos library.
	Extension    = ".photoslibrary"
	DatabaseDir  = "database"
	DatabaseFile = "Photos.sqlite"
	// DefaultName is the library Photos creates on first launch.
	DefaultName = "Photos Library" + Extension
)

// ErrNotLibrary is returned when a directory does not look like a Photos library.
var ErrNotLibrary = errors.New("not a Photos library")

// DatabasePath returns the path to the library's Photos.sqlite.
func DatabasePath(lib string) string {
	return filepath.Join(lib, DatabaseDir, DatabaseFile)
}

// Validate checks that lib contains a Photos database and returns its absolute path.
func Validate(lib string) (string, error) {
	abs, err := filepath.Abs(lib)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(DatabasePath(abs))
	if err != nil {
		return "", fmt.Errorf("%w: %s (no %s/%s)", ErrNotLibrary, abs, DatabaseDir, DatabaseFile)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotLibrary, DatabasePath(abs))
	}
	return abs, nil
}

// DefaultPath returns ~/Pictures/Photos Library.photoslibrary.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Pictures", DefaultName)
}

// Discover lists the Photos libraries directly inside dir, sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var libs []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if _, err := Validate(p); err == nil {
			libs = append(libs, p)
		}
	}
	sort.Strings(libs)
	return libs, nil
}
