package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// LockStore defines the driven port for shared-storage-backed mutual
// exclusion. Acquire must be a single atomic conditional write at the
// storage layer; implementations must not use read-then-write without a
// compare-and-swap guarantee.
type LockStore interface {
	// Acquire claims the (workKind, targetID) lock for holder with the given
	// TTL. Returns nil, nil when another live lock already exists.
	Acquire(ctx context.Context, workKind model.WorkKind, targetID int64, holder string, ttl time.Duration) (*model.SyncLock, error)
	// AcquireWithCooldown behaves like Acquire but additionally fails when a
	// lock for the same (workKind, targetID) completed successfully within
	// the cooldown window. Used for reminder send claims.
	AcquireWithCooldown(ctx context.Context, workKind model.WorkKind, targetID int64, holder string, ttl, cooldown time.Duration) (*model.SyncLock, error)
	// Release marks the lock completed or failed and records the outcome.
	// Lock rows are kept as an audit log, never deleted here.
	Release(ctx context.Context, lockID int64, outcome model.LockOutcome, result, errText string) error
	// ReleaseExpired sweeps running locks whose expiry has passed (crashed
	// holder), marks them failed, and returns how many were reclaimed.
	ReleaseExpired(ctx context.Context) (int64, error)
	// DeleteOldRecords trims completed/failed lock rows beyond the keep most
	// recent per (workKind, targetID) pair. Returns the number deleted.
	DeleteOldRecords(ctx context.Context, keep int) (int64, error)
	// GetByID retrieves a lock record. Returns nil, nil when absent.
	GetByID(ctx context.Context, lockID int64) (*model.SyncLock, error)
}
