package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotStore = (*SnapshotRepo)(nil)

// SnapshotRepo is the SQLite implementation of the SnapshotStore port.
// Every write is an INSERT; nothing in this file updates a row in place.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new SnapshotRepo backed by the given DB.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

const snapshotInsert = `
	INSERT INTO evidence_snapshots (
		owner, repo, ref, data_type, schema_version, captured_at, origin, available, payload
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Save inserts one snapshot and returns its id.
func (r *SnapshotRepo) Save(ctx context.Context, snap model.Snapshot) (int64, error) {
	snap = withDefaults(snap)

	available := 0
	if snap.Available {
		available = 1
	}

	result, err := r.db.Writer.ExecContext(ctx, snapshotInsert,
		snap.Scope.Owner, snap.Scope.Repo, snap.Scope.Ref, string(snap.DataType),
		snap.SchemaVersion, formatTime(snap.CapturedAt), string(snap.Origin),
		available, string(snap.Payload),
	)
	if err != nil {
		return 0, fmt.Errorf("save %s snapshot for %s: %w", snap.DataType, snap.Scope, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot insert id: %w", err)
	}
	return id, nil
}

// SaveBatch inserts several snapshots in a single transaction and returns
// their ids in order.
func (r *SnapshotRepo) SaveBatch(ctx context.Context, snaps []model.Snapshot) ([]int64, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot batch: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(snaps))
	for _, snap := range snaps {
		snap = withDefaults(snap)

		available := 0
		if snap.Available {
			available = 1
		}

		result, err := tx.ExecContext(ctx, snapshotInsert,
			snap.Scope.Owner, snap.Scope.Repo, snap.Scope.Ref, string(snap.DataType),
			snap.SchemaVersion, formatTime(snap.CapturedAt), string(snap.Origin),
			available, string(snap.Payload),
		)
		if err != nil {
			return nil, fmt.Errorf("save %s snapshot for %s: %w", snap.DataType, snap.Scope, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("snapshot insert id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot batch: %w", err)
	}
	return ids, nil
}

const snapshotSelect = `
	SELECT id, owner, repo, ref, data_type, schema_version, captured_at, origin, available, payload
	FROM evidence_snapshots`

// Latest returns the newest snapshot for the (scope, data type) partition,
// or nil, nil when none exists. When requireCurrentSchema is true, rows with
// an older schema version are ignored.
func (r *SnapshotRepo) Latest(ctx context.Context, scope model.SnapshotScope, dataType model.SnapshotDataType, requireCurrentSchema bool) (*model.Snapshot, error) {
	query := snapshotSelect + `
		WHERE owner = ? AND repo = ? AND ref = ? AND data_type = ?`
	args := []any{scope.Owner, scope.Repo, scope.Ref, string(dataType)}

	if requireCurrentSchema {
		query += ` AND schema_version = ?`
		args = append(args, model.SnapshotSchemaVersion)
	}

	query += ` ORDER BY captured_at DESC, id DESC LIMIT 1`

	snap, err := scanSnapshot(r.db.Reader.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s snapshot for %s: %w", dataType, scope, err)
	}
	return snap, nil
}

// History returns up to limit snapshots for the partition, newest first.
func (r *SnapshotRepo) History(ctx context.Context, scope model.SnapshotScope, dataType model.SnapshotDataType, limit int) ([]model.Snapshot, error) {
	const query = snapshotSelect + `
		WHERE owner = ? AND repo = ? AND ref = ? AND data_type = ?
		ORDER BY captured_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query,
		scope.Owner, scope.Repo, scope.Ref, string(dataType), limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshot history for %s: %w", scope, err)
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snaps, nil
}

// MarkUnavailable re-saves the latest known payload for the partition as a
// new row with Available=false and Origin=cached, preserving the last good
// value while recording that the upstream source now reports the object as
// gone. No-op when the partition has no prior row.
func (r *SnapshotRepo) MarkUnavailable(ctx context.Context, scope model.SnapshotScope, dataType model.SnapshotDataType) error {
	prior, err := r.Latest(ctx, scope, dataType, false)
	if err != nil {
		return err
	}
	if prior == nil {
		return nil
	}

	_, err = r.Save(ctx, model.Snapshot{
		Scope:         scope,
		DataType:      dataType,
		SchemaVersion: prior.SchemaVersion,
		Origin:        model.OriginCached,
		Available:     false,
		Payload:       prior.Payload,
	})
	return err
}

// Cleanup deletes snapshots beyond the keepPerPartition most recent per
// (scope, data type) that were captured before now-olderThan. The most
// recent keepPerPartition rows survive regardless of age.
func (r *SnapshotRepo) Cleanup(ctx context.Context, keepPerPartition int, olderThan time.Duration) (int64, error) {
	const query = `
		DELETE FROM evidence_snapshots WHERE id IN (
			SELECT id FROM (
				SELECT id,
				       captured_at,
				       ROW_NUMBER() OVER (
				           PARTITION BY owner, repo, ref, data_type
				           ORDER BY captured_at DESC, id DESC
				       ) AS rank
				FROM evidence_snapshots
			)
			WHERE rank > ? AND captured_at < ?
		)`

	cutoff := time.Now().Add(-olderThan)
	result, err := r.db.Writer.ExecContext(ctx, query, keepPerPartition, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleanup snapshots: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return deleted, nil
}

func withDefaults(snap model.Snapshot) model.Snapshot {
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now()
	}
	if snap.SchemaVersion == 0 {
		snap.SchemaVersion = model.SnapshotSchemaVersion
	}
	if snap.Origin == "" {
		snap.Origin = model.OriginFetched
	}
	return snap
}

func scanSnapshot(s scanner) (*model.Snapshot, error) {
	var snap model.Snapshot
	var dataType, origin, capturedAt, payload string
	var available int

	err := s.Scan(
		&snap.ID, &snap.Scope.Owner, &snap.Scope.Repo, &snap.Scope.Ref,
		&dataType, &snap.SchemaVersion, &capturedAt, &origin, &available, &payload,
	)
	if err != nil {
		return nil, err
	}

	snap.DataType = model.SnapshotDataType(dataType)
	snap.Origin = model.SnapshotOrigin(origin)
	snap.Available = available != 0
	snap.Payload = []byte(payload)

	snap.CapturedAt, err = parseTime(capturedAt)
	if err != nil {
		return nil, fmt.Errorf("parse captured_at: %w", err)
	}

	return &snap, nil
}
