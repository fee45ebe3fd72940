package library

import (
	"context"
	"fmt"
	"os/exec"
	"os/user"
	"strings"
)

// PhotosRunning reports whether the current user has Photos.app open.
// Photos must be closed while its database is rewritten.
func PhotosRunning(ctx context.Context) (bool, error) {
	u, err := user.Current()
	if err != nil {
		return false, fmt.Errorf("looking up current user: %w", err)
	}
	out, err := exec.CommandContext(ctx, "ps", "-ax", "-o", "user", "-o", "command").Output()
	if err != nil {
		return false, fmt.Errorf("listing processes: %w", err)
	}
	return photosInProcessList(string(out), u.Username), nil
}

// photosInProcessList scans `ps -o user -o command` output for a Photos.app
// process owned by username.
func photosInProcessList(out, username string) bool {
	for _, line := range strings.Split(out, "\n") {
		owner, command, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok || owner != username {
			continue
		}
		if strings.Contains(command, "Photos.app/Contents/MacOS/Photos") {
			return true
		}
	}
	return false
}
