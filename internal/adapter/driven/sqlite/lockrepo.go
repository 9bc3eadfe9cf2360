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
var _ driven.LockStore = (*LockRepo)(nil)

// LockRepo is the SQLite implementation of the LockStore port. Acquisition
// is a single conditional INSERT, so concurrent callers from independent
// processes race inside the database, not in application code. The writer
// connection is capped at one open connection and SQLite serializes writes,
// which makes the INSERT ... WHERE NOT EXISTS check-and-claim atomic.
type LockRepo struct {
	db *DB
}

// NewLockRepo creates a new LockRepo backed by the given DB.
func NewLockRepo(db *DB) *LockRepo {
	return &LockRepo{db: db}
}

// Acquire claims the (workKind, targetID) lock for holder. Returns nil, nil
// when a live lock already exists.
func (r *LockRepo) Acquire(ctx context.Context, workKind model.WorkKind, targetID int64, holder string, ttl time.Duration) (*model.SyncLock, error) {
	const query = `
		INSERT INTO sync_locks (work_kind, target_id, holder, acquired_at, expires_at, outcome)
		SELECT ?, ?, ?, ?, ?, 'running'
		WHERE NOT EXISTS (
			SELECT 1 FROM sync_locks
			WHERE work_kind = ? AND target_id = ? AND outcome = 'running' AND expires_at > ?
		)`

	now := time.Now()
	return r.conditionalInsert(ctx, workKind, targetID, query,
		string(workKind), targetID, holder, formatTime(now), formatTime(now.Add(ttl)),
		string(workKind), targetID, formatTime(now),
	)
}

// AcquireWithCooldown behaves like Acquire but additionally refuses the
// claim when a lock for the same pair completed successfully within the
// cooldown window. Both checks live in one statement so the claim stays
// race-free.
func (r *LockRepo) AcquireWithCooldown(ctx context.Context, workKind model.WorkKind, targetID int64, holder string, ttl, cooldown time.Duration) (*model.SyncLock, error) {
	const query = `
		INSERT INTO sync_locks (work_kind, target_id, holder, acquired_at, expires_at, outcome)
		SELECT ?, ?, ?, ?, ?, 'running'
		WHERE NOT EXISTS (
			SELECT 1 FROM sync_locks
			WHERE work_kind = ? AND target_id = ? AND outcome = 'running' AND expires_at > ?
		)
		AND NOT EXISTS (
			SELECT 1 FROM sync_locks
			WHERE work_kind = ? AND target_id = ? AND outcome = 'completed' AND released_at > ?
		)`

	now := time.Now()
	return r.conditionalInsert(ctx, workKind, targetID, query,
		string(workKind), targetID, holder, formatTime(now), formatTime(now.Add(ttl)),
		string(workKind), targetID, formatTime(now),
		string(workKind), targetID, formatTime(now.Add(-cooldown)),
	)
}

func (r *LockRepo) conditionalInsert(ctx context.Context, workKind model.WorkKind, targetID int64, query string, args ...any) (*model.SyncLock, error) {
	result, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock for %d: %w", workKind, targetID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("lock insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Release marks the lock completed or failed. Rows are kept as an audit log.
func (r *LockRepo) Release(ctx context.Context, lockID int64, outcome model.LockOutcome, result, errText string) error {
	const query = `
		UPDATE sync_locks
		SET outcome = ?, released_at = ?, result = ?, error = ?
		WHERE id = ? AND outcome = 'running'`

	res, err := r.db.Writer.ExecContext(ctx, query,
		string(outcome), formatTime(time.Now()), result, errText, lockID)
	if err != nil {
		return fmt.Errorf("release lock %d: %w", lockID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("lock %d is not running", lockID)
	}
	return nil
}

// ReleaseExpired sweeps running locks whose expiry has passed and marks them
// failed, making their (workKind, targetID) pairs acquirable again.
func (r *LockRepo) ReleaseExpired(ctx context.Context) (int64, error) {
	const query = `
		UPDATE sync_locks
		SET outcome = 'failed', released_at = ?, error = 'lock expired without release'
		WHERE outcome = 'running' AND expires_at <= ?`

	now := formatTime(time.Now())
	result, err := r.db.Writer.ExecContext(ctx, query, now, now)
	if err != nil {
		return 0, fmt.Errorf("release expired locks: %w", err)
	}

	swept, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return swept, nil
}

// DeleteOldRecords trims completed/failed lock rows beyond the keep most
// recent per (workKind, targetID) pair. Running locks are never touched.
func (r *LockRepo) DeleteOldRecords(ctx context.Context, keep int) (int64, error) {
	const query = `
		DELETE FROM sync_locks WHERE id IN (
			SELECT id FROM (
				SELECT id,
				       ROW_NUMBER() OVER (
				           PARTITION BY work_kind, target_id
				           ORDER BY acquired_at DESC, id DESC
				       ) AS rank
				FROM sync_locks
				WHERE outcome IN ('completed', 'failed')
			)
			WHERE rank > ?
		)`

	result, err := r.db.Writer.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("delete old lock records: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return deleted, nil
}

// GetByID retrieves a lock record. Returns nil, nil when absent.
func (r *LockRepo) GetByID(ctx context.Context, lockID int64) (*model.SyncLock, error) {
	const query = `
		SELECT id, work_kind, target_id, holder, acquired_at, expires_at, released_at, outcome, result, error
		FROM sync_locks
		WHERE id = ?`

	lock, err := scanLock(r.db.Reader.QueryRowContext(ctx, query, lockID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lock %d: %w", lockID, err)
	}
	return lock, nil
}

func scanLock(s scanner) (*model.SyncLock, error) {
	var lock model.SyncLock
	var workKind, outcome string
	var acquiredAt, expiresAt, releasedAt string

	err := s.Scan(
		&lock.ID, &workKind, &lock.TargetID, &lock.Holder,
		&acquiredAt, &expiresAt, &releasedAt, &outcome, &lock.Result, &lock.Error,
	)
	if err != nil {
		return nil, err
	}

	lock.WorkKind = model.WorkKind(workKind)
	lock.Outcome = model.LockOutcome(outcome)

	lock.AcquiredAt, err = parseTime(acquiredAt)
	if err != nil {
		return nil, fmt.Errorf("parse acquired_at: %w", err)
	}

	lock.ExpiresAt, err = parseTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	lock.ReleasedAt, err = parseNullableTime(releasedAt)
	if err != nil {
		return nil, fmt.Errorf("parse released_at: %w", err)
	}

	return &lock, nil
}
