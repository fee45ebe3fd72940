package photosdb

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"

	"github.com/matsen/photomend/internal/bookmark"
)

// Record is one referenced file: a ZFILESYSTEMBOOKMARK row together with the
// resource and volume rows that point at it.
type Record struct {
	PK                   int64  `json:"pk"`
	ResourcePK           int64  `json:"resource_pk"`
	VolumePK             int64  `json:"volume_pk,omitempty"`
	VolumeName           string `json:"volume_name,omitempty"`
	VolumeUUID           string `json:"volume_uuid,omitempty"`
	PathRelativeToVolume string `json:"path_relative_to_volume"`
	BookmarkData         []byte `json:"-"`
}

// Volume is a ZFILESYSTEMVOLUME row.
type Volume struct {
	PK         int64  `json:"pk"`
	Name       string `json:"name"`
	UUID       string `json:"uuid"`        // ZUUID, Photos' own row identifier
	VolumeUUID string `json:"volume_uuid"` // ZVOLUMEUUIDSTRING, the filesystem UUID
	Resources  int    `json:"resources"`
}

const selectRecords = `
	SELECT
		ZFILESYSTEMBOOKMARK.Z_PK,
		ZINTERNALRESOURCE.Z_PK,
		ZINTERNALRESOURCE.ZFILESYSTEMVOLUME,
		ZFILESYSTEMVOLUME.ZNAME,
		ZFILESYSTEMVOLUME.ZVOLUMEUUIDSTRING,
		ZFILESYSTEMBOOKMARK.ZPATHRELATIVETOVOLUME,
		ZFILESYSTEMBOOKMARK.ZBOOKMARKDATA
	FROM ZFILESYSTEMBOOKMARK
	JOIN ZINTERNALRESOURCE ON ZINTERNALRESOURCE.ZFILESYSTEMBOOKMARK = ZFILESYSTEMBOOKMARK.Z_PK
	LEFT JOIN ZFILESYSTEMVOLUME ON ZFILESYSTEMVOLUME.Z_PK = ZINTERNALRESOURCE.ZFILESYSTEMVOLUME
	ORDER BY ZFILESYSTEMBOOKMARK.Z_PK`

// Records returns every referenced file in the library, ordered by bookmark PK.
func (d *DB) Records(ctx context.Context) ([]Record, error) {
	rows, err := d.db.QueryContext(ctx, selectRecords)
	if err != nil {
		return nil, fmt.Errorf("querying bookmarks: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                Record
			volPK            sql.NullInt64
			volName, volUUID sql.NullString
			relPath          sql.NullString
		)
		if err := rows.Scan(&r.PK, &r.ResourcePK, &volPK, &volName, &volUUID, &relPath, &r.BookmarkData); err != nil {
			return nil, fmt.Errorf("scanning bookmark row: %w", err)
		}
		r.VolumePK = volPK.Int64
		r.VolumeName = volName.String
		r.VolumeUUID = volUUID.String
		r.PathRelativeToVolume = relPath.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bookmarks: %w", err)
	}
	return records, nil
}

// Record returns the referenced file whose bookmark PK is pk.
func (d *DB) Record(ctx context.Context, pk int64) (*Record, error) {
	records, err := d.Records(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].PK == pk {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: bookmark %d", ErrNoRow, pk)
}

// Volumes returns all ZFILESYSTEMVOLUME rows with the number of resources
// that reference each, ordered by PK.
func (d *DB) Volumes(ctx context.Context) ([]Volume, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT v.Z_PK, v.ZNAME, v.ZUUID, v.ZVOLUMEUUIDSTRING,
			(SELECT COUNT(*) FROM ZINTERNALRESOURCE r WHERE r.ZFILESYSTEMVOLUME = v.Z_PK)
		FROM ZFILESYSTEMVOLUME v
		ORDER BY v.Z_PK`)
	if err != nil {
		return nil, fmt.Errorf("querying volumes: %w", err)
	}
	defer rows.Close()

	var vols []Volume
	for rows.Next() {
		var (
			v                    Volume
			name, zuuid, volUUID sql.NullString
		)
		if err := rows.Scan(&v.PK, &name, &zuuid, &volUUID, &v.Resources); err != nil {
			return nil, fmt.Errorf("scanning volume row: %w", err)
		}
		v.Name = name.String
		v.UUID = zuuid.String
		v.VolumeUUID = volUUID.String
		vols = append(vols, v)
	}
	return vols, rows.Err()
}

// Bookmark decodes the record's bookmark data.
func (r Record) Bookmark() (*bookmark.Bookmark, error) {
	if len(r.BookmarkData) == 0 {
		return nil, fmt.Errorf("%w: bookmark %d has no data", bookmark.ErrMalformed, r.PK)
	}
	return bookmark.Decode(r.BookmarkData)
}

// OnRootVolume reports whether the record's volume is the boot volume with
// the given name and UUID. The UUID decides when the record has one; rows
// without a UUID fall back to the volume name.
func (r Record) OnRootVolume(rootName, rootUUID string) bool {
	if r.VolumeUUID != "" {
		return rootUUID != "" && strings.EqualFold(r.VolumeUUID, rootUUID)
	}
	return r.VolumeName != "" && r.VolumeName == rootName
}

// ResolvedPath returns the file path the record refers to. The bookmark's
// own path wins when it decodes; otherwise the path is rebuilt from the
// volume name and relative path. Photos stores root-volume files as
// /Users/..., never /Volumes/Macintosh HD/Users/...
func (r Record) ResolvedPath(onRootVolume bool) string {
	if b, err := r.Bookmark(); err == nil {
		if p := b.PathString(); p != "" {
			return p
		}
	}
	rel := strings.TrimPrefix(r.PathRelativeToVolume, "/")
	if onRootVolume || r.VolumeName == "" {
		return path.Clean("/" + rel)
	}
	return path.Clean("/Volumes/" + r.VolumeName + "/" + rel)
}
