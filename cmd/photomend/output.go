package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/matsen/photomend/internal/bookmark"
	"github.com/matsen/photomend/internal/config"
	"github.com/matsen/photomend/internal/library"
	"github.com/matsen/photomend/internal/photosdb"
)

// PathMaxLen bounds paths in tabular human output.
const PathMaxLen = 80

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitCodeFor maps a package sentinel error to the CLI exit code.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, config.ErrUnknownKey),
		errors.Is(err, library.ErrNotLibrary):
		return ExitConfigError
	case errors.Is(err, bookmark.ErrMalformed),
		errors.Is(err, photosdb.ErrNotPhotosDB),
		errors.Is(err, photosdb.ErrNoRow):
		return ExitDataError
	default:
		return ExitError
	}
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// UpdateResponse is the response for config set commands.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	end := maxLen - 3
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + "..."
}

// truncateLeft keeps the end of a path, which is the part that differs.
func truncateLeft(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	start := len(s) - maxLen + 3
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
