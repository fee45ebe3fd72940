package bookmark

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotRelocatable is returned when a bookmark's path is not under the relocation source.
var ErrNotRelocatable = errors.New("bookmark is not under the relocation source")

// ScopePolicy selects what happens to the sandbox extension of a relocated bookmark.
type ScopePolicy string

const (
	// ScopeRewrite points the extension path at the new location.
	ScopeRewrite ScopePolicy = "rewrite"
	// ScopeStrip removes the extension so the owner re-issues one on next access.
	ScopeStrip ScopePolicy = "strip"
	// ScopeKeep leaves the extension untouched.
	ScopeKeep ScopePolicy = "keep"
)

// ValidScopePolicies lists the accepted policy names.
var ValidScopePolicies = []ScopePolicy{ScopeRewrite, ScopeStrip, ScopeKeep}

// ParseScopePolicy validates a policy name. Empty selects ScopeRewrite.
func ParseScopePolicy(s string) (ScopePolicy, error) {
	if s == "" {
		return ScopeRewrite, nil
	}
	for _, p := range ValidScopePolicies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid security scope policy: %s (valid: %v)", s, ValidScopePolicies)
}

// FileIDResolver returns the file IDs (inode numbers) of every component of an
// absolute path, outermost first.
type FileIDResolver interface {
	FileIDs(path string) ([]int64, error)
}

// Relocation describes how to move a bookmark to another location.
type Relocation struct {
	From   string // absolute path prefix to replace
	To     string // absolute path prefix to put in its place
	Volume Volume // identity of the volume holding To
	Scope  ScopePolicy
	// FileIDs refreshes the CNID path. When nil, or when it fails, the stale
	// IDs are dropped and the bookmark resolves by path.
	FileIDs FileIDResolver
}

// Components splits an absolute path into its components; "/" yields none.
func Components(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return []string{}
	}
	return strings.Split(p, "/")
}

// RewritePrefix replaces the leading from components of parts with to.
// Matching is case-insensitive, as on default APFS and HFS+ volumes.
func RewritePrefix(parts, from, to []string) ([]string, bool) {
	if len(parts) < len(from) {
		return nil, false
	}
	for i, c := range from {
		if !strings.EqualFold(parts[i], c) {
			return nil, false
		}
	}
	out := make([]string, 0, len(to)+len(parts)-len(from))
	out = append(out, to...)
	return append(out, parts[len(from):]...), true
}

// Relocate returns a patched copy of b whose path, volume identity, file IDs
// and sandbox extension describe the relocated target. b is not modified.
func Relocate(b *Bookmark, r Relocation) (*Bookmark, error) {
	old := b.Path()
	if len(old) == 0 {
		return nil, fmt.Errorf("%w: bookmark has no path", ErrNotRelocatable)
	}
	parts, ok := RewritePrefix(old, Components(r.From), Components(r.To))
	if !ok {
		return nil, fmt.Errorf("%w: %s is not under %s", ErrNotRelocatable, b.PathString(), r.From)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: relocation maps %s to the volume root", ErrNotRelocatable, b.PathString())
	}

	out := b.Clone()
	newPath := "/" + strings.Join(parts, "/")

	arr := make(Array, len(parts))
	for i, p := range parts {
		arr[i] = String(p)
	}
	out.Set(KeyPath, arr)

	if v, ok := out.Get(KeyContainingFolder); ok {
		if n, ok := v.(Number); ok && len(parts) >= 2 {
			n.Int = int64(len(parts) - 2)
			out.Set(KeyContainingFolder, n)
		} else if len(parts) < 2 {
			out.Delete(KeyContainingFolder)
		}
	}
	if v, ok := out.Get(KeyFileName); ok {
		if _, ok := v.(String); ok {
			out.Set(KeyFileName, String(parts[len(parts)-1]))
		}
	}

	relocateFileIDs(out, newPath, len(parts), r.FileIDs)
	relocateVolume(out, r.Volume)

	switch r.Scope {
	case ScopeStrip:
		out.Delete(KeySecurityExtension)
	case ScopeKeep:
	default:
		if err := relocateSandbox(out, r.From, r.To); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func relocateFileIDs(b *Bookmark, newPath string, n int, resolver FileIDResolver) {
	kind := SInt64
	if v, ok := b.Get(KeyCNIDPath); ok {
		if arr, ok := v.(Array); ok && len(arr) > 0 {
			if num, ok := arr[0].(Number); ok {
				kind = num.Kind
			}
		}
	}

	if resolver != nil {
		ids, err := resolver.FileIDs(newPath)
		if err == nil && len(ids) == n {
			arr := make(Array, len(ids))
			for i, id := range ids {
				arr[i] = Number{Kind: kind, Int: id}
			}
			b.Set(KeyCNIDPath, arr)
			if _, ok := b.Get(KeyFileID); ok {
				b.Set(KeyFileID, Number{Kind: kind, Int: ids[len(ids)-1]})
			}
			return
		}
	}

	b.Delete(KeyCNIDPath)
	b.Delete(KeyFileID)
}

func relocateVolume(b *Bookmark, vol Volume) {
	if vol.Path != "" {
		b.Set(KeyVolumePath, String(vol.Path))
		b.Set(KeyVolumeURL, URL{Rel: fileURL(vol.Path)})
		b.Set(KeyVolumeIsRoot, Bool(vol.IsRoot))
		if _, ok := b.Get(KeyVolumeMountPoint); ok {
			b.Set(KeyVolumeMountPoint, URL{Rel: fileURL(vol.Path)})
		}
		// The embedded volume bookmark names the old volume and cannot be
		// rebuilt here; the owner recreates it on next resolution.
		b.Delete(KeyVolumeBookmark)
	}
	if vol.Name != "" {
		b.Set(KeyVolumeName, String(vol.Name))
	}
	if vol.UUID != "" {
		if v, ok := b.Get(KeyVolumeUUID); ok {
			if _, isUUID := v.(UUID); isUUID {
				if u, err := parseUUID(vol.UUID); err == nil {
					b.Set(KeyVolumeUUID, u)
				}
			} else {
				b.Set(KeyVolumeUUID, String(strings.ToUpper(vol.UUID)))
			}
		} else {
			b.Set(KeyVolumeUUID, String(strings.ToUpper(vol.UUID)))
		}
	}
	if vol.Size > 0 {
		b.Set(KeyVolumeSize, Int64(vol.Size))
	} else if vol.Path != "" {
		b.Delete(KeyVolumeSize)
	}
	if !vol.Created.IsZero() {
		b.Set(KeyVolumeCreationDate, DateOf(vol.Created))
	} else if vol.Path != "" {
		b.Delete(KeyVolumeCreationDate)
	}
}

func relocateSandbox(b *Bookmark, from, to string) error {
	v, ok := b.Get(KeySecurityExtension)
	if !ok {
		return nil
	}
	x, ok := b.SecurityExtension()
	if !ok {
		return fmt.Errorf("%w: unreadable sandbox extension", ErrMalformed)
	}
	parts, ok := RewritePrefix(Components(x.Path), Components(from), Components(to))
	if !ok {
		return nil
	}
	x.Path = "/" + strings.Join(parts, "/")
	if _, isString := v.(String); isString {
		b.Set(KeySecurityExtension, String(x.Bytes()))
	} else {
		b.Set(KeySecurityExtension, Data(x.Bytes()))
	}
	return nil
}
