// Package repair relocates the referenced-file bookmarks of a Photos library.
//
// Repair runs in two steps. Plan decodes every bookmark, picks the rule that
// covers its path, patches and re-encodes it, and classifies the record.
// Apply writes the changed records back in a single transaction.
package repair

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/matsen/photomend/internal/bookmark"
	"github.com/matsen/photomend/internal/photosdb"
	"github.com/matsen/photomend/internal/volume"
	"go.uber.org/zap"
)

// ErrNoRules is returned by New when there is nothing to relocate.
var ErrNoRules = errors.New("no relocation rules")

// Status classifies a planned record.
type Status string

const (
	StatusChanged   Status = "changed"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Options configures a repair.
type Options struct {
	Rules []Rule
	Scope bookmark.ScopePolicy
	// OnlyMissing leaves alone records whose file still exists at the old path.
	OnlyMissing bool
	// Synthesize builds a fresh bookmark for records that have none, from the
	// volume name and relative path stored alongside.
	Synthesize bool
	DryRun     bool

	Volumes volume.Resolver
	FileIDs bookmark.FileIDResolver
	// Exists reports whether a file is present. Defaults to os.Stat.
	Exists func(path string) bool
}

// Change is the planned outcome for one record.
type Change struct {
	PK         int64       `json:"pk"`
	ResourcePK int64       `json:"resource_pk"`
	OldPath    string      `json:"old_path,omitempty"`
	NewPath    string      `json:"new_path,omitempty"`
	RelPath    string      `json:"path_relative_to_volume,omitempty"`
	Volume     volume.Info `json:"volume,omitzero"`
	Status     Status      `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	Rule       string      `json:"rule,omitempty"`

	Data []byte `json:"-"`
}

// Plan is the result of planning a repair.
type Plan struct {
	Changes []Change `json:"changes"`
}

// Summary counts changes by status.
type Summary struct {
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Summary tallies the plan.
func (p *Plan) Summary() Summary {
	var s Summary
	for _, c := range p.Changes {
		switch c.Status {
		case StatusChanged:
			s.Changed++
		case StatusUnchanged:
			s.Unchanged++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Changed returns only the changes that will be written.
func (p *Plan) Changed() []Change {
	var out []Change
	for _, c := range p.Changes {
		if c.Status == StatusChanged {
			out = append(out, c)
		}
	}
	return out
}

// Repairer plans and applies bookmark relocations.
type Repairer struct {
	opts Options
	log  *zap.Logger

	root    *volume.Info
	rootErr error
}

// New validates opts and returns a Repairer.
func New(opts Options, log *zap.Logger) (*Repairer, error) {
	if len(opts.Rules) == 0 {
		return nil, ErrNoRules
	}
	if opts.Scope == "" {
		opts.Scope = bookmark.ScopeRewrite
	}
	if opts.Volumes == nil {
		opts.Volumes = volume.NewStatic()
	}
	if opts.Exists == nil {
		opts.Exists = fileExists
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Repairer{opts: opts, log: log}, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Plan works out what would happen to every record. It never touches the database.
func (r *Repairer) Plan(ctx context.Context, records []photosdb.Record) (*Plan, error) {
	plan := &Plan{Changes: make([]Change, 0, len(records))}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := r.planRecord(ctx, rec)
		r.log.Debug("planned record",
			zap.Int64("pk", c.PK),
			zap.String("status", string(c.Status)),
			zap.String("old", c.OldPath),
			zap.String("new", c.NewPath),
			zap.String("reason", c.Reason))
		plan.Changes = append(plan.Changes, c)
	}
	s := plan.Summary()
	r.log.Info("repair planned",
		zap.Int("changed", s.Changed),
		zap.Int("unchanged", s.Unchanged),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed))
	return plan, nil
}

func (r *Repairer) planRecord(ctx context.Context, rec photosdb.Record) Change {
	c := Change{PK: rec.PK, ResourcePK: rec.ResourcePK}
	skip := func(format string, args ...any) Change {
		c.Status, c.Reason = StatusSkipped, fmt.Sprintf(format, args...)
		return c
	}
	fail := func(err error) Change {
		c.Status, c.Reason = StatusFailed, err.Error()
		return c
	}

	var b *bookmark.Bookmark
	if len(rec.BookmarkData) == 0 {
		if !r.opts.Synthesize {
			return skip("no bookmark data")
		}
		old := rec.ResolvedPath(r.onRoot(ctx, rec))
		b = bookmark.New(old, bookmark.Volume{Name: rec.VolumeName, UUID: rec.VolumeUUID})
	} else {
		var err error
		if b, err = bookmark.Decode(rec.BookmarkData); err != nil {
			return fail(err)
		}
	}

	c.OldPath = b.PathString()
	if c.OldPath == "" {
		return skip("bookmark has no path")
	}
	rule, ok := match(r.opts.Rules, c.OldPath)
	if !ok {
		return skip("no rule matches")
	}
	c.Rule = rule.String()
	newPath, _ := rule.Apply(c.OldPath)
	c.NewPath = newPath

	if r.opts.OnlyMissing && r.opts.Exists(c.OldPath) {
		return skip("file still present at original location")
	}
	if !r.opts.Exists(newPath) {
		return skip("target does not exist: %s", newPath)
	}

	info, err := r.opts.Volumes.Lookup(ctx, volume.MountPointOf(newPath))
	if err != nil {
		return fail(fmt.Errorf("identifying volume for %s: %w", newPath, err))
	}
	c.Volume = info

	moved, err := bookmark.Relocate(b, bookmark.Relocation{
		From:    rule.From,
		To:      rule.To,
		Volume:  info.Bookmark(),
		Scope:   r.opts.Scope,
		FileIDs: r.opts.FileIDs,
	})
	if err != nil {
		return fail(err)
	}
	data, err := moved.Encode()
	if err != nil {
		return fail(err)
	}
	c.Data = data
	c.RelPath = volume.RelativeTo(newPath, info.MountPoint)

	if bytes.Equal(data, rec.BookmarkData) &&
		c.RelPath == rec.PathRelativeToVolume &&
		strings.EqualFold(info.UUID, rec.VolumeUUID) {
		c.Status = StatusUnchanged
		return c
	}
	c.Status = StatusChanged
	return c
}

// onRoot reports whether rec lives on the boot volume.
func (r *Repairer) onRoot(ctx context.Context, rec photosdb.Record) bool {
	if r.root == nil && r.rootErr == nil {
		info, err := r.opts.Volumes.Lookup(ctx, "/")
		if err != nil {
			r.rootErr = err
			r.log.Debug("root volume unknown", zap.Error(err))
		} else {
			r.root = &info
		}
	}
	if r.root == nil {
		return false
	}
	return rec.OnRootVolume(r.root.Name, r.root.UUID)
}
