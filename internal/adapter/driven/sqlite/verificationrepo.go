package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.VerificationStore = (*VerificationRepo)(nil)

// VerificationRepo is the SQLite implementation of the VerificationStore
// port. Runs are append-only; nothing here mutates or deletes.
type VerificationRepo struct {
	db *DB
}

// NewVerificationRepo creates a new VerificationRepo backed by the given DB.
func NewVerificationRepo(db *DB) *VerificationRepo {
	return &VerificationRepo{db: db}
}

// InsertRun persists one verification run and returns its id.
func (r *VerificationRepo) InsertRun(ctx context.Context, run model.VerificationRun) (int64, error) {
	const query = `
		INSERT INTO verification_runs (
			deployment_id, status, four_eyes, reason, snapshot_ids, schema_version, actor, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	snapshotIDs := run.SnapshotIDs
	if snapshotIDs == nil {
		snapshotIDs = []int64{}
	}
	idsJSON, err := json.Marshal(snapshotIDs)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot ids: %w", err)
	}

	fourEyes := 0
	if run.FourEyes {
		fourEyes = 1
	}

	schemaVersion := run.SchemaVersion
	if schemaVersion == 0 {
		schemaVersion = model.SnapshotSchemaVersion
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		run.DeploymentID, string(run.Status), fourEyes, run.Reason,
		string(idsJSON), schemaVersion, run.Actor, formatTime(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert verification run for deployment %d: %w", run.DeploymentID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("verification run insert id: %w", err)
	}
	return id, nil
}

// RunsForDeployment returns all runs for a deployment, newest first.
func (r *VerificationRepo) RunsForDeployment(ctx context.Context, deploymentID int64) ([]model.VerificationRun, error) {
	const query = `
		SELECT id, deployment_id, status, four_eyes, reason, snapshot_ids, schema_version, actor, created_at
		FROM verification_runs
		WHERE deployment_id = ?
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("query verification runs for deployment %d: %w", deploymentID, err)
	}
	defer rows.Close()

	var runs []model.VerificationRun
	for rows.Next() {
		var run model.VerificationRun
		var status, idsJSON, createdAt string
		var fourEyes int

		err := rows.Scan(
			&run.ID, &run.DeploymentID, &status, &fourEyes, &run.Reason,
			&idsJSON, &run.SchemaVersion, &run.Actor, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan verification run: %w", err)
		}

		run.Status = model.DeploymentStatus(status)
		run.FourEyes = fourEyes != 0

		if err := json.Unmarshal([]byte(idsJSON), &run.SnapshotIDs); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot ids: %w", err)
		}

		run.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification runs: %w", err)
	}

	return runs, nil
}
