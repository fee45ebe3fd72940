package repair

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matsen/photomend/internal/bookmark"
	"github.com/matsen/photomend/internal/photosdb"
	"github.com/matsen/photomend/internal/photosdb/photosdbtest"
	"github.com/matsen/photomend/internal/volume"
	"go.uber.org/zap"
)

const (
	oldUUID  = "0A1B2C3D-4E5F-4A6B-8C7D-9E0F1A2B3C4D"
	newUUID  = "7C3F6F0E-1D2B-4A5C-9E8F-0A1B2C3D4E5F"
	rootUUID = "5D2E8B4A-3C1F-4E6D-9A8B-7C6D5E4F3A2B"
)

var (
	oldDrive = bookmark.Volume{Path: "/Volumes/OldDrive", Name: "OldDrive", UUID: oldUUID}
	resolver = volume.NewStatic(
		volume.Info{Name: "Macintosh HD", UUID: rootUUID, MountPoint: "/"},
		volume.Info{Name: "NewDrive", UUID: newUUID, MountPoint: "/Volumes/NewDrive", Size: 4000787030016},
	)
	driveRule = Rule{From: "/Volumes/OldDrive", To: "/Volumes/NewDrive"}
)

func blob(t *testing.T, p string, vol bookmark.Volume) []byte {
	t.Helper()
	data, err := bookmark.New(p, vol).Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return data
}

func existing(paths ...string) func(string) bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return func(p string) bool { return set[p] }
}

// setupLibrary seeds one record of every kind the planner distinguishes.
func setupLibrary(t *testing.T) string {
	t.Helper()
	return photosdbtest.Library(t,
		[]photosdbtest.Volume{
			{PK: 1, Name: "OldDrive", UUID: "11111111-AAAA-4AAA-8AAA-111111111111", VolumeUUID: oldUUID},
			{PK: 2, Name: "Macintosh HD", UUID: "22222222-BBBB-4BBB-8BBB-222222222222", VolumeUUID: rootUUID},
		},
		[]photosdbtest.File{
			{PK: 10, ResourcePK: 100, VolumePK: 1, RelPath: "Photos/2019/a.jpg", Data: blob(t, "/Volumes/OldDrive/Photos/2019/a.jpg", oldDrive)},
			{PK: 11, ResourcePK: 101, VolumePK: 2, RelPath: "Users/me/Pictures/b.jpg", Data: blob(t, "/Users/me/Pictures/b.jpg", bookmark.Volume{Path: "/", IsRoot: true})},
			{PK: 12, ResourcePK: 102, VolumePK: 1, RelPath: "Photos/c.jpg"},
			{PK: 13, ResourcePK: 103, VolumePK: 1, RelPath: "Photos/d.jpg", Data: []byte("junk")},
			{PK: 14, ResourcePK: 104, VolumePK: 1, RelPath: "Photos/missing.jpg", Data: blob(t, "/Volumes/OldDrive/Photos/missing.jpg", oldDrive)},
		},
	)
}

func loadRecords(t *testing.T, lib string, mode photosdb.Mode) (*photosdb.DB, []photosdb.Record) {
	t.Helper()
	db, err := photosdb.Open(photosdbtest.DatabasePath(lib), mode)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	records, err := db.Records(context.Background())
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	return db, records
}

func newRepairer(t *testing.T, opts Options) *Repairer {
	t.Helper()
	if opts.Rules == nil {
		opts.Rules = []Rule{driveRule}
	}
	if opts.Volumes == nil {
		opts.Volumes = resolver
	}
	r, err := New(opts, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func statuses(p *Plan) map[int64]Status {
	m := make(map[int64]Status, len(p.Changes))
	for _, c := range p.Changes {
		m[c.PK] = c.Status
	}
	return m
}

func TestNew_NoRules(t *testing.T) {
	if _, err := New(Options{}, nil); !errors.Is(err, ErrNoRules) {
		t.Errorf("New() error = %v, want ErrNoRules", err)
	}
}

func TestPlan(t *testing.T) {
	_, records := loadRecords(t, setupLibrary(t), photosdb.ReadOnly)
	r := newRepairer(t, Options{Exists: existing("/Volumes/NewDrive/Photos/2019/a.jpg")})

	plan, err := r.Plan(context.Background(), records)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	want := map[int64]Status{
		10: StatusChanged,
		11: StatusSkipped, // no rule
		12: StatusSkipped, // no bookmark data
		13: StatusFailed,  // malformed
		14: StatusSkipped, // target missing
	}
	if diff := cmp.Diff(want, statuses(plan)); diff != "" {
		t.Errorf("Plan() statuses mismatch (-want +got):\n%s", diff)
	}
	if got := plan.Summary(); got != (Summary{Changed: 1, Skipped: 3, Failed: 1}) {
		t.Errorf("Summary() = %+v", got)
	}

	c := plan.Changes[0]
	if c.NewPath != "/Volumes/NewDrive/Photos/2019/a.jpg" || c.RelPath != "Photos/2019/a.jpg" {
		t.Errorf("change = %+v", c)
	}
	if c.Volume.UUID != newUUID || c.Rule != driveRule.String() {
		t.Errorf("change volume/rule = %+v / %q", c.Volume, c.Rule)
	}
	b, err := bookmark.Decode(c.Data)
	if err != nil {
		t.Fatalf("Decode(planned) error = %v", err)
	}
	if got := b.Volume(); got.Name != "NewDrive" || got.UUID != newUUID || got.Size != 4000787030016 {
		t.Errorf("planned bookmark volume = %+v", got)
	}
}

func TestPlan_OnlyMissing(t *testing.T) {
	_, records := loadRecords(t, setupLibrary(t), photosdb.ReadOnly)
	r := newRepairer(t, Options{
		OnlyMissing: true,
		Exists:      existing("/Volumes/OldDrive/Photos/2019/a.jpg", "/Volumes/NewDrive/Photos/2019/a.jpg"),
	})

	plan, err := r.Plan(context.Background(), records)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got := statuses(plan)[10]; got != StatusSkipped {
		t.Errorf("status of a file still present = %s, want skipped", got)
	}
}

func TestPlan_Synthesize(t *testing.T) {
	_, records := loadRecords(t, setupLibrary(t), photosdb.ReadOnly)
	r := newRepairer(t, Options{
		Synthesize: true,
		Exists:     existing("/Volumes/NewDrive/Photos/c.jpg"),
	})

	plan, err := r.Plan(context.Background(), records)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	var c Change
	for _, ch := range plan.Changes {
		if ch.PK == 12 {
			c = ch
		}
	}
	if c.Status != StatusChanged {
		t.Fatalf("synthesized record status = %s (%s), want changed", c.Status, c.Reason)
	}
	if c.OldPath != "/Volumes/OldDrive/Photos/c.jpg" {
		t.Errorf("OldPath = %q", c.OldPath)
	}
	b, err := bookmark.Decode(c.Data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := b.PathString(); got != "/Volumes/NewDrive/Photos/c.jpg" {
		t.Errorf("synthesized path = %q", got)
	}
}

func TestPlan_UnknownVolume(t *testing.T) {
	_, records := loadRecords(t, setupLibrary(t), photosdb.ReadOnly)
	r := newRepairer(t, Options{
		Rules:  []Rule{{From: "/Volumes/OldDrive", To: "/Volumes/Elsewhere"}},
		Exists: func(string) bool { return true },
	})

	plan, err := r.Plan(context.Background(), records)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got := statuses(plan)[10]; got != StatusFailed {
		t.Errorf("status with unknown target volume = %s, want failed", got)
	}
}

func TestPlan_Cancelled(t *testing.T) {
	_, records := loadRecords(t, setupLibrary(t), photosdb.ReadOnly)
	r := newRepairer(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Plan(ctx, records); !errors.Is(err, context.Canceled) {
		t.Errorf("Plan() error = %v, want context.Canceled", err)
	}
}

func TestApply(t *testing.T) {
	lib := setupLibrary(t)
	db, records := loadRecords(t, lib, photosdb.ReadWrite)
	ctx := context.Background()
	exists := existing("/Volumes/NewDrive/Photos/2019/a.jpg")
	r := newRepairer(t, Options{Exists: exists})

	plan, err := r.Plan(ctx, records)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	res, err := r.Apply(ctx, db, plan)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Updated != 1 || len(res.VolumesCreated) != 1 || res.VolumesCreated[0] != 3 {
		t.Errorf("Apply() = %+v, want 1 update and volume 3 created", res)
	}

	rec, err := db.Record(ctx, 10)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.VolumePK != 3 || rec.VolumeName != "NewDrive" || rec.VolumeUUID != newUUID {
		t.Errorf("record volume = %d %q %q", rec.VolumePK, rec.VolumeName, rec.VolumeUUID)
	}
	if rec.PathRelativeToVolume != "Photos/2019/a.jpg" {
		t.Errorf("PathRelativeToVolume = %q", rec.PathRelativeToVolume)
	}
	if got := rec.ResolvedPath(false); got != "/Volumes/NewDrive/Photos/2019/a.jpg" {
		t.Errorf("ResolvedPath() = %q", got)
	}

	var zmax int64
	photosdbtest.Query(t, lib, `SELECT Z_MAX FROM Z_PRIMARYKEY WHERE Z_NAME = 'FileSystemVolume'`, nil, &zmax)
	if zmax != 3 {
		t.Errorf("Z_MAX = %d, want 3", zmax)
	}

	// A second pass over the repaired library is a no-op.
	records, err = db.Records(ctx)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	again := newRepairer(t, Options{
		Rules:  []Rule{{From: "/Volumes/NewDrive", To: "/Volumes/NewDrive"}},
		Exists: exists,
	})
	plan, err = again.Plan(ctx, records)
	if err != nil {
		t.Fatalf("second Plan() error = %v", err)
	}
	if got := statuses(plan)[10]; got != StatusUnchanged {
		t.Errorf("second pass status = %s, want unchanged", got)
	}
}

func TestApply_DryRun(t *testing.T) {
	lib := setupLibrary(t)
	db, records := loadRecords(t, lib, photosdb.ReadWrite)
	ctx := context.Background()
	r := newRepairer(t, Options{DryRun: true, Exists: existing("/Volumes/NewDrive/Photos/2019/a.jpg")})

	plan, err := r.Plan(ctx, records)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	res, err := r.Apply(ctx, db, plan)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !res.DryRun || res.Updated != 1 {
		t.Errorf("Apply() = %+v", res)
	}

	rec, err := db.Record(ctx, 10)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.VolumePK != 1 {
		t.Errorf("dry run wrote volume %d", rec.VolumePK)
	}
}

func TestVerifyVolumes(t *testing.T) {
	lib := photosdbtest.Library(t,
		[]photosdbtest.Volume{
			{PK: 1, Name: "OldDrive", VolumeUUID: oldUUID},
			{PK: 2, Name: "Macintosh HD", VolumeUUID: rootUUID},
			{PK: 3, Name: "Gone", VolumeUUID: "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA"},
			{PK: 4, Name: "Unused", VolumeUUID: "BBBBBBBB-BBBB-4BBB-8BBB-BBBBBBBBBBBB"},
		},
		[]photosdbtest.File{
			{PK: 10, ResourcePK: 100, VolumePK: 1, RelPath: "a.jpg"},
			{PK: 11, ResourcePK: 101, VolumePK: 2, RelPath: "b.jpg"},
			{PK: 12, ResourcePK: 102, VolumePK: 3, RelPath: "c.jpg"},
		},
	)
	db, _ := loadRecords(t, lib, photosdb.ReadWrite)
	ctx := context.Background()

	// OldDrive was reformatted: same name, new UUID.
	live := volume.NewStatic(
		volume.Info{Name: "Macintosh HD", UUID: rootUUID, MountPoint: "/"},
		volume.Info{Name: "OldDrive", UUID: newUUID, MountPoint: "/Volumes/OldDrive"},
	)

	checks, err := VerifyVolumes(ctx, db, live, false, nil)
	if err != nil {
		t.Fatalf("VerifyVolumes() error = %v", err)
	}
	got := make(map[int64]string)
	for _, c := range checks {
		got[c.PK] = c.Status
	}
	want := map[int64]string{1: VolumeMismatch, 2: VolumeOK, 3: VolumeUnmounted, 4: VolumeUnused}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("VerifyVolumes() statuses mismatch (-want +got):\n%s", diff)
	}

	checks, err = VerifyVolumes(ctx, db, live, true, zap.NewNop())
	if err != nil {
		t.Fatalf("VerifyVolumes(fix) error = %v", err)
	}
	if checks[0].Replacement != 5 || checks[0].Moved != 1 {
		t.Errorf("fixed check = %+v, want replacement 5 with 1 resource moved", checks[0])
	}

	rec, err := db.Record(ctx, 10)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.VolumePK != 5 || rec.VolumeUUID != newUUID {
		t.Errorf("record volume = %d %q, want 5 %q", rec.VolumePK, rec.VolumeUUID, newUUID)
	}

	// Nothing left to fix.
	checks, err = VerifyVolumes(ctx, db, live, true, nil)
	if err != nil {
		t.Fatalf("third VerifyVolumes() error = %v", err)
	}
	for _, c := range checks {
		if c.Status == VolumeMismatch && c.Resources > 0 {
			t.Errorf("volume %d still mismatched with %d resources", c.PK, c.Resources)
		}
	}
}
