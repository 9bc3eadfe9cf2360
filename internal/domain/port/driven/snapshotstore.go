package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// SnapshotStore defines the driven port for the append-only evidence
// snapshot store. Every write is an insert; no operation updates a row in
// place, so historical evidence survives for audits.
type SnapshotStore interface {
	// Save inserts one snapshot and returns its id. A zero CapturedAt is
	// filled with the current time; SchemaVersion 0 is filled with the
	// current schema version.
	Save(ctx context.Context, snap model.Snapshot) (int64, error)
	// SaveBatch inserts several snapshots in one transaction and returns
	// their ids in order.
	SaveBatch(ctx context.Context, snaps []model.Snapshot) ([]int64, error)
	// Latest returns the snapshot with the greatest capture time for the
	// partition, or nil, nil when none exists. When requireCurrentSchema is
	// true, rows with an older schema version are ignored.
	Latest(ctx context.Context, scope model.SnapshotScope, dataType model.SnapshotDataType, requireCurrentSchema bool) (*model.Snapshot, error)
	// History returns up to limit snapshots for the partition, newest first.
	History(ctx context.Context, scope model.SnapshotScope, dataType model.SnapshotDataType, limit int) ([]model.Snapshot, error)
	// MarkUnavailable re-saves the latest known-good payload for the
	// partition as a new row with Available=false and Origin=cached,
	// ignoring the schema-version filter. No-op when no prior row exists.
	MarkUnavailable(ctx context.Context, scope model.SnapshotScope, dataType model.SnapshotDataType) error
	// Cleanup deletes snapshots beyond the keepPerPartition most recent per
	// (scope, data type) that are older than olderThan. The most recent
	// keepPerPartition rows are never touched regardless of age. Returns the
	// number of rows deleted.
	Cleanup(ctx context.Context, keepPerPartition int, olderThan time.Duration) (int64, error)
}
