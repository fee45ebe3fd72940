// Package photosdb reads and patches the referenced-file tables of a Photos
// library database (Photos.sqlite).
package photosdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"

	_ "modernc.org/sqlite"
)

// Mode selects how the database is opened.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// Core Data entity names in Z_PRIMARYKEY.
const (
	EntityFileSystemVolume   = "FileSystemVolume"
	EntityFileSystemBookmark = "FileSystemBookmark"
)

var (
	// ErrNoRow is returned when an update matches no row.
	ErrNoRow = errors.New("no matching row")
	// ErrNotPhotosDB is returned when the expected tables are missing.
	ErrNotPhotosDB = errors.New("not a Photos database")
)

// DB wraps a connection to Photos.sqlite.
type DB struct {
	db   *sql.DB
	mode Mode

	mu       sync.Mutex
	entities map[string]int64
}

// dsn builds a SQLite URI for path. busy_timeout lets us wait out
// short-lived locks held by photoanalysisd and friends.
func dsn(path string, mode Mode) string {
	q := url.Values{}
	if mode == ReadOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("mode", "rw")
	}
	q.Add("_pragma", "busy_timeout(5000)")
	u := url.URL{Scheme: "file", Path: path, RawQuery: q.Encode()}
	return u.String()
}

// Open opens an existing Photos database. It never creates a file.
func Open(path string, mode Mode) (*DB, error) {
	db, err := sql.Open("sqlite", dsn(path, mode))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := checkSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db, mode: mode, entities: make(map[string]int64)}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

var requiredTables = []string{
	"ZFILESYSTEMBOOKMARK",
	"ZINTERNALRESOURCE",
	"ZFILESYSTEMVOLUME",
	"Z_PRIMARYKEY",
}

func checkSchema(db *sql.DB) error {
	for _, table := range requiredTables {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
		if err != nil {
			return fmt.Errorf("reading schema: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: missing table %s", ErrNotPhotosDB, table)
		}
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EntityID returns the Core Data entity number (Z_ENT) of name.
func (d *DB) EntityID(ctx context.Context, name string) (int64, error) {
	return d.entityID(ctx, d.db, name)
}

func (d *DB) entityID(ctx context.Context, q queryer, name string) (int64, error) {
	d.mu.Lock()
	id, ok := d.entities[name]
	d.mu.Unlock()
	if ok {
		return id, nil
	}

	err := q.QueryRowContext(ctx, `SELECT Z_ENT FROM Z_PRIMARYKEY WHERE Z_NAME = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: entity %s not in Z_PRIMARYKEY", ErrNotPhotosDB, name)
	}
	if err != nil {
		return 0, fmt.Errorf("reading entity %s: %w", name, err)
	}

	d.mu.Lock()
	d.entities[name] = id
	d.mu.Unlock()
	return id, nil
}
