// Package volume looks up the identity (name, UUID, size) of mounted volumes.
package volume

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/matsen/photomend/internal/bookmark"
)

// ErrNotFound is returned when no resolver knows the volume.
var ErrNotFound = errors.New("volume not found")

// Info describes a mounted volume.
type Info struct {
	Name       string    `json:"name" yaml:"name"`
	UUID       string    `json:"uuid" yaml:"uuid"`
	MountPoint string    `json:"mount_point" yaml:"mount_point"`
	Size       int64     `json:"size,omitempty" yaml:"size,omitempty"`
	Created    time.Time `json:"created,omitzero" yaml:"created,omitempty"`
	IsRoot     bool      `json:"is_root" yaml:"is_root,omitempty"`
}

// Bookmark converts the info to the identity embedded in bookmarks.
func (i Info) Bookmark() bookmark.Volume {
	return bookmark.Volume{
		Path:    i.MountPoint,
		Name:    i.Name,
		UUID:    strings.ToUpper(i.UUID),
		Size:    i.Size,
		Created: i.Created,
		IsRoot:  i.IsRoot,
	}
}

// Resolver looks up a volume by its mount point.
type Resolver interface {
	Lookup(ctx context.Context, mountPoint string) (Info, error)
}

// MountPointOf returns the mount point that holds an absolute path:
// /Volumes/<name> for external volumes, / otherwise.
func MountPointOf(p string) string {
	parts := bookmark.Components(p)
	if len(parts) >= 2 && parts[0] == "Volumes" {
		return "/Volumes/" + parts[1]
	}
	return "/"
}

// RelativeTo returns p relative to mount, without a leading slash.
func RelativeTo(p, mount string) string {
	p = path.Clean("/" + p)
	mount = path.Clean("/" + mount)
	if mount == "/" {
		return strings.TrimPrefix(p, "/")
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, mount), "/")
}

// Static resolves volumes from a fixed table, typically built from config.
type Static map[string]Info

// NewStatic indexes infos by their cleaned mount point.
func NewStatic(infos ...Info) Static {
	s := make(Static, len(infos))
	for _, info := range infos {
		mp := path.Clean("/" + info.MountPoint)
		info.MountPoint = mp
		if mp == "/" {
			info.IsRoot = true
		}
		s[mp] = info
	}
	return s
}

// Lookup implements Resolver.
func (s Static) Lookup(_ context.Context, mountPoint string) (Info, error) {
	if info, ok := s[path.Clean("/"+mountPoint)]; ok {
		return info, nil
	}
	return Info{}, fmt.Errorf("%w: %s", ErrNotFound, mountPoint)
}

// Chain tries each resolver in order and returns the first hit.
type Chain []Resolver

// Lookup implements Resolver.
func (c Chain) Lookup(ctx context.Context, mountPoint string) (Info, error) {
	var errs []error
	for _, r := range c {
		info, err := r.Lookup(ctx, mountPoint)
		if err == nil {
			return info, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, mountPoint)
	}
	return Info{}, errors.Join(errs...)
}
