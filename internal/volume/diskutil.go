package volume

import (
	"context"
	"fmt"
	"os/exec"
	"path"
	"sync"

	"howett.net/plist"
)

// runFunc runs a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Diskutil resolves volumes with `diskutil info -plist`. Results are cached
// for the life of the resolver.
type Diskutil struct {
	run runFunc

	mu    sync.Mutex
	cache map[string]Info
}

// NewDiskutil returns a resolver backed by the diskutil command.
func NewDiskutil() *Diskutil {
	return &Diskutil{run: execRun, cache: make(map[string]Info)}
}

// diskutilInfo is the subset of `diskutil info -plist` output we use.
type diskutilInfo struct {
	VolumeName string `plist:"VolumeName"`
	VolumeUUID string `plist:"VolumeUUID"`
	MountPoint string `plist:"MountPoint"`
	TotalSize  int64  `plist:"TotalSize"`
	Size       int64  `plist:"Size"`
}

// Lookup implements Resolver.
func (d *Diskutil) Lookup(ctx context.Context, mountPoint string) (Info, error) {
	mp := path.Clean("/" + mountPoint)

	d.mu.Lock()
	info, ok := d.cache[mp]
	d.mu.Unlock()
	if ok {
		return info, nil
	}

	out, err := d.run(ctx, "diskutil", "info", "-plist", mp)
	if err != nil {
		return Info{}, fmt.Errorf("%w: diskutil info %s: %v", ErrNotFound, mp, err)
	}
	info, err = parseDiskutil(out)
	if err != nil {
		return Info{}, fmt.Errorf("parsing diskutil output for %s: %w", mp, err)
	}
	if info.UUID == "" {
		return Info{}, fmt.Errorf("%w: %s has no volume UUID", ErrNotFound, mp)
	}
	if info.MountPoint == "" {
		info.MountPoint = mp
	}

	d.mu.Lock()
	d.cache[mp] = info
	d.mu.Unlock()
	return info, nil
}

func parseDiskutil(data []byte) (Info, error) {
	var di diskutilInfo
	if _, err := plist.Unmarshal(data, &di); err != nil {
		return Info{}, err
	}
	size := di.TotalSize
	if size == 0 {
		size = di.Size
	}
	return Info{
		Name:       di.VolumeName,
		UUID:       di.VolumeUUID,
		MountPoint: di.MountPoint,
		Size:       size,
		IsRoot:     di.MountPoint == "/",
	}, nil
}
