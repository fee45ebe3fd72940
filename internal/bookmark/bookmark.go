package bookmark

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Volume is the volume identity embedded in a bookmark.
type Volume struct {
	Path    string    `json:"path"`
	Name    string    `json:"name,omitempty"`
	UUID    string    `json:"uuid,omitempty"`
	Size    int64     `json:"size,omitempty"`
	Created time.Time `json:"created,omitempty"`
	IsRoot  bool      `json:"is_root"`
}

// Get returns the value stored under a numeric key, searching every TOC in order.
func (b *Bookmark) Get(key uint32) (Value, bool) {
	for _, toc := range b.TOCs {
		for _, e := range toc.Entries {
			if e.Name == "" && e.Key == key {
				return e.Value, true
			}
		}
	}
	return nil, false
}

// Set replaces the value under key, or adds it to the first TOC.
func (b *Bookmark) Set(key uint32, v Value) {
	for i := range b.TOCs {
		for j := range b.TOCs[i].Entries {
			e := &b.TOCs[i].Entries[j]
			if e.Name == "" && e.Key == key {
				e.Value = v
				return
			}
		}
	}
	if len(b.TOCs) == 0 {
		b.TOCs = append(b.TOCs, TOC{ID: 1})
	}
	b.TOCs[0].Entries = append(b.TOCs[0].Entries, Entry{Key: key, Value: v})
}

// Delete removes key from every TOC and reports whether it was present.
func (b *Bookmark) Delete(key uint32) bool {
	found := false
	for i := range b.TOCs {
		kept := b.TOCs[i].Entries[:0]
		for _, e := range b.TOCs[i].Entries {
			if e.Name == "" && e.Key == key {
				found = true
				continue
			}
			kept = append(kept, e)
		}
		b.TOCs[i].Entries = kept
	}
	return found
}

// Clone returns a deep copy.
func (b *Bookmark) Clone() *Bookmark {
	out := &Bookmark{
		Version: b.Version,
		Header:  bytes.Clone(b.Header),
		TOCs:    make([]TOC, len(b.TOCs)),
	}
	for i, toc := range b.TOCs {
		entries := make([]Entry, len(toc.Entries))
		for j, e := range toc.Entries {
			e.Value = cloneValue(e.Value)
			entries[j] = e
		}
		out.TOCs[i] = TOC{ID: toc.ID, Entries: entries}
	}
	return out
}

func cloneValue(v Value) Value {
	switch v := v.(type) {
	case Data:
		return Data(bytes.Clone(v))
	case Raw:
		return Raw{TypeCode: v.TypeCode, Bytes: bytes.Clone(v.Bytes)}
	case Array:
		out := make(Array, len(v))
		for i, elem := range v {
			out[i] = cloneValue(elem)
		}
		return out
	case Dict:
		out := make(Dict, len(v))
		for i, kv := range v {
			out[i] = DictEntry{Key: cloneValue(kv.Key), Value: cloneValue(kv.Value)}
		}
		return out
	case URL:
		if v.Base != nil {
			return URL{Base: cloneValue(v.Base), Rel: v.Rel}
		}
	}
	return v
}

// Path returns the path components of the target, outermost first.
func (b *Bookmark) Path() []string {
	v, ok := b.Get(KeyPath)
	if !ok {
		return nil
	}
	arr, ok := v.(Array)
	if !ok {
		return nil
	}
	parts := make([]string, 0, len(arr))
	for _, elem := range arr {
		s, ok := elem.(String)
		if !ok {
			return nil
		}
		parts = append(parts, string(s))
	}
	return parts
}

// PathString returns the absolute POSIX path of the target, or "" if the
// bookmark carries no path.
func (b *Bookmark) PathString() string {
	parts := b.Path()
	if parts == nil {
		return ""
	}
	return "/" + strings.Join(parts, "/")
}

// Volume returns the volume identity fields present in the bookmark.
func (b *Bookmark) Volume() Volume {
	var vol Volume
	vol.Path = b.stringAt(KeyVolumePath)
	if vol.Path == "" {
		if v, ok := b.Get(KeyVolumeURL); ok {
			vol.Path = urlPath(v)
		}
	}
	vol.Name = b.stringAt(KeyVolumeName)
	if v, ok := b.Get(KeyVolumeUUID); ok {
		switch v := v.(type) {
		case String:
			vol.UUID = string(v)
		case UUID:
			vol.UUID = strings.ToUpper(uuid.UUID(v).String())
		}
	}
	if v, ok := b.Get(KeyVolumeSize); ok {
		if n, ok := v.(Number); ok {
			vol.Size = n.Int
		}
	}
	if v, ok := b.Get(KeyVolumeCreationDate); ok {
		if d, ok := v.(Date); ok {
			vol.Created = d.Time()
		}
	}
	if v, ok := b.Get(KeyVolumeIsRoot); ok {
		if r, ok := v.(Bool); ok {
			vol.IsRoot = bool(r)
		}
	}
	return vol
}

func (b *Bookmark) stringAt(key uint32) string {
	v, ok := b.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(String)
	return string(s)
}

// urlPath extracts the filesystem path of a file URL value.
func urlPath(v Value) string {
	u, ok := v.(URL)
	if !ok {
		return ""
	}
	parsed, err := url.Parse(u.Rel)
	if err != nil || parsed.Scheme != "file" {
		return ""
	}
	p := parsed.Path
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// fileURL returns the directory file URL for a mount point, e.g. file:///Volumes/Photo%20Drive/.
func fileURL(mount string) string {
	p := mount
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

func parseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, err
	}
	return UUID(u), nil
}

// New builds a minimal bookmark for an absolute path on vol. It carries no
// file IDs and no sandbox extension.
func New(p string, vol Volume) *Bookmark {
	parts := Components(p)
	arr := make(Array, len(parts))
	for i, c := range parts {
		arr[i] = String(c)
	}

	b := &Bookmark{Version: defaultVersion, TOCs: []TOC{{ID: 1}}}
	b.Set(KeyPath, arr)
	if vol.Path != "" {
		b.Set(KeyVolumePath, String(vol.Path))
		b.Set(KeyVolumeURL, URL{Rel: fileURL(vol.Path)})
	}
	if vol.Name != "" {
		b.Set(KeyVolumeName, String(vol.Name))
	}
	if vol.UUID != "" {
		b.Set(KeyVolumeUUID, String(strings.ToUpper(vol.UUID)))
	}
	if vol.Size > 0 {
		b.Set(KeyVolumeSize, Int64(vol.Size))
	}
	if !vol.Created.IsZero() {
		b.Set(KeyVolumeCreationDate, DateOf(vol.Created))
	}
	b.Set(KeyVolumeIsRoot, Bool(vol.IsRoot))
	if len(parts) >= 2 {
		b.Set(KeyContainingFolder, Int64(int64(len(parts)-2)))
	}
	return b
}
