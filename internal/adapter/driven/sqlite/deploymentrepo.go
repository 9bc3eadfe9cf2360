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
var _ driven.DeploymentStore = (*DeploymentRepo)(nil)

// DeploymentRepo is the SQLite implementation of the DeploymentStore port.
// Deployment rows are insert-once; UpdateStatus is the only mutation.
type DeploymentRepo struct {
	db *DB
}

// NewDeploymentRepo creates a new DeploymentRepo backed by the given DB.
func NewDeploymentRepo(db *DB) *DeploymentRepo {
	return &DeploymentRepo{db: db}
}

// Insert persists a newly observed deployment. Re-inserting the same
// (application, platform id) pair fails on the unique constraint.
func (r *DeploymentRepo) Insert(ctx context.Context, d model.Deployment) (int64, error) {
	const query = `
		INSERT INTO deployments (
			application_id, platform_id, commit_sha, deployer,
			detected_owner, detected_repo, cluster, status, pr_number,
			deployed_at, observed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	status := d.Status
	if status == "" {
		status = model.StatusPending
	}

	observedAt := d.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		d.ApplicationID, d.PlatformID, d.CommitSHA, d.Deployer,
		d.DetectedOwner, d.DetectedRepo, d.Cluster, string(status), d.PRNumber,
		formatTime(d.DeployedAt), formatTime(observedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert deployment %d for application %d: %w", d.PlatformID, d.ApplicationID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("deployment insert id: %w", err)
	}
	return id, nil
}

// GetByID retrieves a single deployment. Returns nil, nil when absent.
func (r *DeploymentRepo) GetByID(ctx context.Context, id int64) (*model.Deployment, error) {
	const query = deploymentSelect + ` WHERE id = ?`

	d, err := scanDeployment(r.db.Reader.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment %d: %w", id, err)
	}
	return d, nil
}

// LatestPlatformID returns the highest platform deployment id seen for the
// application, 0 when none exist.
func (r *DeploymentRepo) LatestPlatformID(ctx context.Context, applicationID int64) (int64, error) {
	const query = `SELECT COALESCE(MAX(platform_id), 0) FROM deployments WHERE application_id = ?`

	var max int64
	if err := r.db.Reader.QueryRowContext(ctx, query, applicationID).Scan(&max); err != nil {
		return 0, fmt.Errorf("latest platform id for application %d: %w", applicationID, err)
	}
	return max, nil
}

// ListVerifiable returns deployments still eligible for verification, capped
// at limit. Only approved_pr, manually_approved, and legacy rows are final;
// everything else is retried so a flagged deployment can still transition to
// approved_pr once the evidence changes, e.g. a retroactive approval after
// the last commit. Rows awaiting their first verdict (pending, error) come
// first so a backlog of flagged rows cannot starve new deployments under the
// per-cycle cap; within each group, oldest first.
func (r *DeploymentRepo) ListVerifiable(ctx context.Context, applicationID int64, limit int) ([]model.Deployment, error) {
	const query = deploymentSelect + `
		WHERE application_id = ? AND status NOT IN (?, ?, ?)
		ORDER BY CASE WHEN status IN (?, ?) THEN 0 ELSE 1 END, platform_id
		LIMIT ?`

	return r.queryDeployments(ctx, query, applicationID,
		string(model.StatusApprovedPR), string(model.StatusManuallyApproved), string(model.StatusLegacy),
		string(model.StatusPending), string(model.StatusError), limit)
}

// ListUnresolved returns deployments lacking a resolved status, oldest first.
func (r *DeploymentRepo) ListUnresolved(ctx context.Context, applicationID int64) ([]model.Deployment, error) {
	const query = deploymentSelect + `
		WHERE application_id = ? AND status NOT IN (?, ?, ?)
		ORDER BY platform_id`

	return r.queryDeployments(ctx, query, applicationID,
		string(model.StatusApprovedPR), string(model.StatusManuallyApproved), string(model.StatusLegacy))
}

// ListRecent returns the newest deployments for an application, newest first.
func (r *DeploymentRepo) ListRecent(ctx context.Context, applicationID int64, limit int) ([]model.Deployment, error) {
	const query = deploymentSelect + `
		WHERE application_id = ?
		ORDER BY platform_id DESC
		LIMIT ?`

	return r.queryDeployments(ctx, query, applicationID, limit)
}

// UpdateStatus sets the verification status and linked PR number. Returns an
// error when the deployment does not exist.
func (r *DeploymentRepo) UpdateStatus(ctx context.Context, id int64, status model.DeploymentStatus, prNumber int) error {
	const query = `UPDATE deployments SET status = ?, pr_number = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), prNumber, id)
	if err != nil {
		return fmt.Errorf("update deployment %d status: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("deployment %d not found", id)
	}
	return nil
}

const deploymentSelect = `
	SELECT id, application_id, platform_id, commit_sha, deployer,
	       detected_owner, detected_repo, cluster, status, pr_number,
	       deployed_at, observed_at
	FROM deployments`

func (r *DeploymentRepo) queryDeployments(ctx context.Context, query string, args ...any) ([]model.Deployment, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	defer rows.Close()

	var deployments []model.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		deployments = append(deployments, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployments: %w", err)
	}

	return deployments, nil
}

func scanDeployment(s scanner) (*model.Deployment, error) {
	var d model.Deployment
	var status string
	var deployedAt, observedAt string

	err := s.Scan(
		&d.ID, &d.ApplicationID, &d.PlatformID, &d.CommitSHA, &d.Deployer,
		&d.DetectedOwner, &d.DetectedRepo, &d.Cluster, &status, &d.PRNumber,
		&deployedAt, &observedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = model.DeploymentStatus(status)

	d.DeployedAt, err = parseTime(deployedAt)
	if err != nil {
		return nil, fmt.Errorf("parse deployed_at: %w", err)
	}

	d.ObservedAt, err = parseTime(observedAt)
	if err != nil {
		return nil, fmt.Errorf("parse observed_at: %w", err)
	}

	return &d, nil
}
