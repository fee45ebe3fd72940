package bookmark

import (
	"bytes"
	"fmt"
	"strings"
)

// SandboxExtension is the token stored under KeySecurityExtension. It is a
// NUL-terminated, semicolon-separated record whose last field is the
// absolute path the extension grants access to, e.g.
//
//	<hmac>;00;00000000;00000000;00000000;000000000000001a;com.apple.app-sandbox.read-write;01;01000004;00000000000a1b2c;01;/Volumes/Photos/IMG_0001.JPG
//
// The path may itself contain semicolons, so it is located by the first ";/".
type SandboxExtension struct {
	Prefix string // everything before the path, including the trailing ';'
	Path   string
}

// ParseSandboxExtension parses the raw token bytes.
func ParseSandboxExtension(raw []byte) (SandboxExtension, error) {
	s := string(bytes.TrimRight(raw, "\x00"))
	i := strings.Index(s, ";/")
	if i < 0 {
		return SandboxExtension{}, fmt.Errorf("%w: sandbox extension has no path", ErrMalformed)
	}
	return SandboxExtension{Prefix: s[:i+1], Path: s[i+1:]}, nil
}

// Class returns the extension class, such as com.apple.app-sandbox.read-write.
func (x SandboxExtension) Class() string {
	for _, f := range strings.Split(x.Prefix, ";") {
		if strings.HasPrefix(f, "com.apple.") {
			return f
		}
	}
	return ""
}

// Bytes re-serializes the token with its NUL terminator.
func (x SandboxExtension) Bytes() []byte {
	return append([]byte(x.Prefix+x.Path), 0)
}

// SecurityExtension returns the parsed sandbox extension, if the bookmark has one.
func (b *Bookmark) SecurityExtension() (SandboxExtension, bool) {
	v, ok := b.Get(KeySecurityExtension)
	if !ok {
		return SandboxExtension{}, false
	}
	var raw []byte
	switch v := v.(type) {
	case Data:
		raw = v
	case String:
		raw = []byte(v)
	default:
		return SandboxExtension{}, false
	}
	x, err := ParseSandboxExtension(raw)
	if err != nil {
		return SandboxExtension{}, false
	}
	return x, true
}
