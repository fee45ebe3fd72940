// Package photosdbtest builds minimal Photos libraries for tests.
package photosdbtest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// Schema is the subset of the Photos schema the repair tool touches.
const Schema = `
	CREATE TABLE Z_PRIMARYKEY (
		Z_ENT INTEGER PRIMARY KEY,
		Z_NAME VARCHAR,
		Z_SUPER INTEGER,
		Z_MAX INTEGER
	);
	CREATE TABLE ZFILESYSTEMVOLUME (
		Z_PK INTEGER PRIMARY KEY,
		Z_ENT INTEGER,
		Z_OPT INTEGER,
		ZNAME VARCHAR,
		ZUUID VARCHAR,
		ZVOLUMEUUIDSTRING VARCHAR
	);
	CREATE TABLE ZFILESYSTEMBOOKMARK (
		Z_PK INTEGER PRIMARY KEY,
		Z_ENT INTEGER,
		Z_OPT INTEGER,
		ZRESOURCE INTEGER,
		ZPATHRELATIVETOVOLUME VARCHAR,
		ZBOOKMARKDATA BLOB
	);
	CREATE TABLE ZINTERNALRESOURCE (
		Z_PK INTEGER PRIMARY KEY,
		Z_ENT INTEGER,
		Z_OPT INTEGER,
		ZFILESYSTEMBOOKMARK INTEGER,
		ZFILESYSTEMVOLUME INTEGER
	);
	INSERT INTO Z_PRIMARYKEY (Z_ENT, Z_NAME, Z_SUPER, Z_MAX) VALUES
		(24, 'FileSystemBookmark', 0, 0),
		(25, 'FileSystemVolume', 0, 0),
		(34, 'InternalResource', 0, 0);
`

// VolumeEntity is the Z_ENT Schema assigns to FileSystemVolume.
const VolumeEntity = 25

// Volume is a ZFILESYSTEMVOLUME row to seed.
type Volume struct {
	PK         int64
	Name       string
	UUID       string
	VolumeUUID string
}

// File is a referenced file to seed: one bookmark row and its resource.
type File struct {
	PK         int64
	ResourcePK int64
	VolumePK   int64 // 0 leaves the resource without a volume
	RelPath    string
	Data       []byte
}

// Library creates <dir>/Test.photoslibrary with a seeded database and
// returns the library path.
func Library(t *testing.T, vols []Volume, files []File) string {
	t.Helper()

	lib := filepath.Join(t.TempDir(), "Test.photoslibrary")
	if err := os.MkdirAll(filepath.Join(lib, "database"), 0755); err != nil {
		t.Fatalf("creating library: %v", err)
	}
	dbPath := filepath.Join(lib, "database", "Photos.sqlite")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening fixture database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	var maxVol int64
	for _, v := range vols {
		_, err := db.Exec(`INSERT INTO ZFILESYSTEMVOLUME (Z_PK, Z_ENT, Z_OPT, ZNAME, ZUUID, ZVOLUMEUUIDSTRING)
			VALUES (?, ?, 1, ?, ?, ?)`, v.PK, VolumeEntity, v.Name, v.UUID, v.VolumeUUID)
		if err != nil {
			t.Fatalf("seeding volume %d: %v", v.PK, err)
		}
		maxVol = max(maxVol, v.PK)
	}
	if _, err := db.Exec(`UPDATE Z_PRIMARYKEY SET Z_MAX = ? WHERE Z_NAME = 'FileSystemVolume'`, maxVol); err != nil {
		t.Fatalf("seeding Z_MAX: %v", err)
	}

	for _, f := range files {
		var data any
		if f.Data != nil {
			data = f.Data
		}
		_, err := db.Exec(`INSERT INTO ZFILESYSTEMBOOKMARK (Z_PK, Z_ENT, Z_OPT, ZRESOURCE, ZPATHRELATIVETOVOLUME, ZBOOKMARKDATA)
			VALUES (?, 24, 1, ?, ?, ?)`, f.PK, f.ResourcePK, f.RelPath, data)
		if err != nil {
			t.Fatalf("seeding bookmark %d: %v", f.PK, err)
		}
		var vol any
		if f.VolumePK != 0 {
			vol = f.VolumePK
		}
		_, err = db.Exec(`INSERT INTO ZINTERNALRESOURCE (Z_PK, Z_ENT, Z_OPT, ZFILESYSTEMBOOKMARK, ZFILESYSTEMVOLUME)
			VALUES (?, 34, 1, ?, ?)`, f.ResourcePK, f.PK, vol)
		if err != nil {
			t.Fatalf("seeding resource %d: %v", f.ResourcePK, err)
		}
	}
	return lib
}

// DatabasePath returns the Photos.sqlite path inside a fixture library.
func DatabasePath(lib string) string {
	return filepath.Join(lib, "database", "Photos.sqlite")
}

// Query runs a single-row query against the fixture database, bypassing
// the package under test.
func Query(t *testing.T, lib, query string, args []any, dest ...any) {
	t.Helper()
	db, err := sql.Open("sqlite", DatabasePath(lib))
	if err != nil {
		t.Fatalf("opening fixture database: %v", err)
	}
	defer db.Close()
	if err := db.QueryRow(query, args...).Scan(dest...); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
}
