// Package application contains use-case orchestration services.
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

// LockManager wraps the LockStore with the convenience protocol the
// orchestrator uses: run a unit of work only if the lock is acquired,
// guarantee release on every exit path, and report contention as a skip
// rather than an error.
type LockManager struct {
	store driven.LockStore
	// holder identifies this worker process across the shared store.
	holder string
}

// NewLockManager creates a LockManager. holder should be unique per worker
// process (a uuid in production).
func NewLockManager(store driven.LockStore, holder string) *LockManager {
	return &LockManager{store: store, holder: holder}
}

// Holder returns this worker's lock holder identifier.
func (m *LockManager) Holder() string {
	return m.holder
}

// LockReport describes the outcome of a WithLock call. Locked is true when
// another process already held the lock and the work was skipped.
type LockReport struct {
	Locked bool
	LockID int64
	Result string
}

// WithLock acquires the (workKind, targetID) lock and runs fn under it. The
// lock is released on every exit path: completed with fn's JSON-encoded
// result on success, failed with the error text otherwise (panics included).
// When the lock is held elsewhere, fn is not run and the report has
// Locked=true.
func (m *LockManager) WithLock(ctx context.Context, workKind model.WorkKind, targetID int64, ttl time.Duration, fn func(ctx context.Context) (any, error)) (LockReport, error) {
	lock, err := m.store.Acquire(ctx, workKind, targetID, m.holder, ttl)
	if err != nil {
		return LockReport{}, err
	}
	if lock == nil {
		return LockReport{Locked: true}, nil
	}
	return m.runLocked(ctx, lock, fn)
}

func (m *LockManager) runLocked(ctx context.Context, lock *model.SyncLock, fn func(ctx context.Context) (any, error)) (report LockReport, err error) {
	report.LockID = lock.ID

	var released bool
	defer func() {
		if released {
			return
		}
		// Reached only when fn panicked; release so the pair does not stay
		// blocked until the expiry sweep.
		if relErr := m.store.Release(context.WithoutCancel(ctx), lock.ID, model.LockOutcomeFailed, "", "panic during locked work"); relErr != nil {
			slog.Error("release after panic failed", "lock_id", lock.ID, "error", relErr)
		}
	}()

	result, workErr := fn(ctx)

	if workErr != nil {
		released = true
		if relErr := m.store.Release(context.WithoutCancel(ctx), lock.ID, model.LockOutcomeFailed, "", workErr.Error()); relErr != nil {
			slog.Error("release failed lock", "lock_id", lock.ID, "error", relErr)
		}
		return report, workErr
	}

	resultJSON := ""
	if result != nil {
		data, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			slog.Error("marshal lock result", "lock_id", lock.ID, "error", marshalErr)
		} else {
			resultJSON = string(data)
		}
	}

	released = true
	if relErr := m.store.Release(context.WithoutCancel(ctx), lock.ID, model.LockOutcomeCompleted, resultJSON, ""); relErr != nil {
		return report, fmt.Errorf("release lock %d: %w", lock.ID, relErr)
	}

	report.Result = resultJSON
	return report, nil
}

// WithClaim is WithLock with an added cooldown: the claim fails when the
// same (workKind, targetID) completed successfully within the cooldown
// window. Used for reminder sends.
func (m *LockManager) WithClaim(ctx context.Context, workKind model.WorkKind, targetID int64, ttl, cooldown time.Duration, fn func(ctx context.Context) (any, error)) (LockReport, error) {
	lock, err := m.store.AcquireWithCooldown(ctx, workKind, targetID, m.holder, ttl, cooldown)
	if err != nil {
		return LockReport{}, err
	}
	if lock == nil {
		return LockReport{Locked: true}, nil
	}
	return m.runLocked(ctx, lock, fn)
}
