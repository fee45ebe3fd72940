package photosdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrReadOnly is returned by Begin on a database opened ReadOnly.
var ErrReadOnly = errors.New("database opened read-only")

// Tx is a write transaction against the library database.
type Tx struct {
	d  *DB
	tx *sql.Tx
}

// Begin starts a write transaction.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	if d.mode != ReadWrite {
		return nil, ErrReadOnly
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{d: d, tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. It is safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// UpdateBookmark replaces the bookmark data and relative path of a
// ZFILESYSTEMBOOKMARK row. Z_OPT is bumped so Core Data sees the change.
func (t *Tx) UpdateBookmark(ctx context.Context, pk int64, data []byte, relPath string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE ZFILESYSTEMBOOKMARK
		SET ZBOOKMARKDATA = ?, ZPATHRELATIVETOVOLUME = ?, Z_OPT = COALESCE(Z_OPT, 0) + 1
		WHERE Z_PK = ?`, data, relPath, pk)
	if err != nil {
		return fmt.Errorf("updating bookmark %d: %w", pk, err)
	}
	return expectOne(res, "bookmark", pk)
}

// EnsureVolume returns the PK of the ZFILESYSTEMVOLUME row for (name,
// volumeUUID), inserting one when none exists. created reports an insert.
func (t *Tx) EnsureVolume(ctx context.Context, name, volumeUUID string) (pk int64, created bool, err error) {
	volumeUUID = strings.ToUpper(volumeUUID)
	err = t.tx.QueryRowContext(ctx, `
		SELECT Z_PK FROM ZFILESYSTEMVOLUME
		WHERE ZNAME = ? AND UPPER(ZVOLUMEUUIDSTRING) = ?
		ORDER BY Z_PK LIMIT 1`, name, volumeUUID).Scan(&pk)
	if err == nil {
		return pk, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("looking up volume %s: %w", name, err)
	}

	ent, err := t.d.entityID(ctx, t.tx, EntityFileSystemVolume)
	if err != nil {
		return 0, false, err
	}

	// Core Data allocates PKs from Z_MAX; never hand out one below an existing row.
	var zmax, maxPK int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(Z_MAX, 0) FROM Z_PRIMARYKEY WHERE Z_NAME = ?`, EntityFileSystemVolume).Scan(&zmax); err != nil {
		return 0, false, fmt.Errorf("reading Z_MAX: %w", err)
	}
	if err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(Z_PK), 0) FROM ZFILESYSTEMVOLUME`).Scan(&maxPK); err != nil {
		return 0, false, fmt.Errorf("reading max volume pk: %w", err)
	}
	pk = max(zmax, maxPK) + 1

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO ZFILESYSTEMVOLUME (Z_PK, Z_ENT, Z_OPT, ZNAME, ZUUID, ZVOLUMEUUIDSTRING)
		VALUES (?, ?, 1, ?, ?, ?)`,
		pk, ent, name, strings.ToUpper(uuid.NewString()), volumeUUID)
	if err != nil {
		return 0, false, fmt.Errorf("inserting volume %s: %w", name, err)
	}
	if _, err := t.tx.ExecContext(ctx, `UPDATE Z_PRIMARYKEY SET Z_MAX = ? WHERE Z_NAME = ?`, pk, EntityFileSystemVolume); err != nil {
		return 0, false, fmt.Errorf("updating Z_MAX: %w", err)
	}
	return pk, true, nil
}

// SetResourceVolume points a ZINTERNALRESOURCE row at a volume row.
func (t *Tx) SetResourceVolume(ctx context.Context, resourcePK, volumePK int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE ZINTERNALRESOURCE SET ZFILESYSTEMVOLUME = ? WHERE Z_PK = ?`, volumePK, resourcePK)
	if err != nil {
		return fmt.Errorf("updating resource %d: %w", resourcePK, err)
	}
	return expectOne(res, "resource", resourcePK)
}

// RepointResources moves every resource on volume oldPK to newPK and
// returns how many were moved.
func (t *Tx) RepointResources(ctx context.Context, oldPK, newPK int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE ZINTERNALRESOURCE SET ZFILESYSTEMVOLUME = ? WHERE ZFILESYSTEMVOLUME = ?`, newPK, oldPK)
	if err != nil {
		return 0, fmt.Errorf("repointing resources from volume %d: %w", oldPK, err)
	}
	return res.RowsAffected()
}

func expectOne(res sql.Result, what string, pk int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", ErrNoRow, what, pk)
	}
	return nil
}
