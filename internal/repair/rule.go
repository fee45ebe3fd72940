package repair

import (
	"fmt"
	"path"
	"strings"

	"github.com/matsen/photomend/internal/bookmark"
)

// Rule relocates every path under From to the same place under To.
type Rule struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ParseRule parses "from=to". Both sides must be absolute.
func ParseRule(s string) (Rule, error) {
	from, to, ok := strings.Cut(s, "=")
	if !ok {
		return Rule{}, fmt.Errorf("invalid rule %q (want FROM=TO)", s)
	}
	return NewRule(from, to)
}

// NewRule validates and cleans a rule.
func NewRule(from, to string) (Rule, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if !path.IsAbs(from) || !path.IsAbs(to) {
		return Rule{}, fmt.Errorf("invalid rule %s=%s: paths must be absolute", from, to)
	}
	r := Rule{From: path.Clean(from), To: path.Clean(to)}
	if r.From == "/" {
		return Rule{}, fmt.Errorf("invalid rule %s=%s: cannot relocate /", from, to)
	}
	return r, nil
}

func (r Rule) String() string {
	return r.From + "=" + r.To
}

// Apply maps p through the rule.
func (r Rule) Apply(p string) (string, bool) {
	parts, ok := bookmark.RewritePrefix(bookmark.Components(p), bookmark.Components(r.From), bookmark.Components(r.To))
	if !ok {
		return "", false
	}
	return "/" + strings.Join(parts, "/"), true
}

// match returns the rule with the longest From that covers p.
func match(rules []Rule, p string) (Rule, bool) {
	parts := bookmark.Components(p)
	best, depth := Rule{}, -1
	for _, r := range rules {
		from := bookmark.Components(r.From)
		if len(from) <= depth {
			continue
		}
		if _, ok := bookmark.RewritePrefix(parts, from, nil); ok {
			best, depth = r, len(from)
		}
	}
	return best, depth >= 0
}
