package repair

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matsen/photomend/internal/photosdb"
	"github.com/matsen/photomend/internal/volume"
	"go.uber.org/zap"
)

// Result reports what Apply wrote.
type Result struct {
	Updated        int     `json:"updated"`
	VolumesCreated []int64 `json:"volumes_created,omitempty"`
	DryRun         bool    `json:"dry_run,omitempty"`
}

type volumeKey struct{ name, uuid string }

// Apply writes every changed record of plan in a single transaction: the new
// bookmark data and relative path, a ZFILESYSTEMVOLUME row for the target
// volume, and the resource's pointer to that row. Nothing is written when
// any step fails or when the repair is a dry run.
func (r *Repairer) Apply(ctx context.Context, db *photosdb.DB, plan *Plan) (*Result, error) {
	changes := plan.Changed()
	if r.opts.DryRun {
		return &Result{Updated: len(changes), DryRun: true}, nil
	}
	if len(changes) == 0 {
		return &Result{}, nil
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res := &Result{}
	vols := make(map[volumeKey]int64)
	for _, c := range changes {
		if err := tx.UpdateBookmark(ctx, c.PK, c.Data, c.RelPath); err != nil {
			return nil, err
		}

		key := volumeKey{c.Volume.Name, strings.ToUpper(c.Volume.UUID)}
		volPK, ok := vols[key]
		if !ok {
			var created bool
			volPK, created, err = tx.EnsureVolume(ctx, key.name, key.uuid)
			if err != nil {
				return nil, err
			}
			if created {
				r.log.Info("created volume row", zap.Int64("pk", volPK), zap.String("name", key.name))
				res.VolumesCreated = append(res.VolumesCreated, volPK)
			}
			vols[key] = volPK
		}
		if err := tx.SetResourceVolume(ctx, c.ResourcePK, volPK); err != nil {
			return nil, err
		}
		res.Updated++
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	r.log.Info("repair applied", zap.Int("updated", res.Updated))
	return res, nil
}

// Volume check states.
const (
	VolumeOK        = "ok"
	VolumeMismatch  = "mismatch"
	VolumeUnmounted = "unmounted"
	VolumeUnused    = "unused"
)

// VolumeCheck compares one ZFILESYSTEMVOLUME row with the mounted volume of
// the same name.
type VolumeCheck struct {
	PK          int64  `json:"pk"`
	Name        string `json:"name"`
	StoredUUID  string `json:"stored_uuid"`
	LiveUUID    string `json:"live_uuid,omitempty"`
	Resources   int    `json:"resources"`
	Status      string `json:"status"`
	Replacement int64  `json:"replacement_pk,omitempty"`
	Moved       int64  `json:"moved,omitempty"`
}

// VerifyVolumes checks that every volume row still names the UUID of the
// volume mounted under its name. With fix, resources of mismatched rows are
// re-pointed to a row carrying the live UUID, created if needed.
func (r *Repairer) VerifyVolumes(ctx context.Context, db *photosdb.DB, fix bool) ([]VolumeCheck, error) {
	return VerifyVolumes(ctx, db, r.opts.Volumes, fix && !r.opts.DryRun, r.log)
}

// VerifyVolumes is the standalone form of (*Repairer).VerifyVolumes.
func VerifyVolumes(ctx context.Context, db *photosdb.DB, resolver volume.Resolver, fix bool, log *zap.Logger) ([]VolumeCheck, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vols, err := db.Volumes(ctx)
	if err != nil {
		return nil, err
	}

	root, rootErr := resolver.Lookup(ctx, "/")
	checks := make([]VolumeCheck, 0, len(vols))
	for _, v := range vols {
		c := VolumeCheck{PK: v.PK, Name: v.Name, StoredUUID: v.VolumeUUID, Resources: v.Resources}
		if v.Resources == 0 {
			c.Status = VolumeUnused
			checks = append(checks, c)
			continue
		}

		live, lerr := root, rootErr
		if rootErr != nil || v.Name != root.Name {
			live, lerr = resolver.Lookup(ctx, "/Volumes/"+v.Name)
		}
		switch {
		case errors.Is(lerr, volume.ErrNotFound):
			c.Status = VolumeUnmounted
		case lerr != nil:
			return nil, fmt.Errorf("looking up volume %s: %w", v.Name, lerr)
		case strings.EqualFold(live.UUID, v.VolumeUUID):
			c.Status, c.LiveUUID = VolumeOK, live.UUID
		default:
			c.Status, c.LiveUUID = VolumeMismatch, live.UUID
		}
		checks = append(checks, c)
	}

	if !fix {
		return checks, nil
	}

	var tx *photosdb.Tx
	for i := range checks {
		c := &checks[i]
		if c.Status != VolumeMismatch {
			continue
		}
		if tx == nil {
			if tx, err = db.Begin(ctx); err != nil {
				return nil, err
			}
			defer tx.Rollback()
		}
		pk, _, err := tx.EnsureVolume(ctx, c.Name, c.LiveUUID)
		if err != nil {
			return nil, err
		}
		moved, err := tx.RepointResources(ctx, c.PK, pk)
		if err != nil {
			return nil, err
		}
		c.Replacement, c.Moved = pk, moved
		log.Info("re-pointed resources",
			zap.String("volume", c.Name),
			zap.Int64("from", c.PK),
			zap.Int64("to", pk),
			zap.Int64("resources", moved))
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}
	return checks, nil
}
