package driven

import (
	"context"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// DeploymentStore defines the driven port for deployment persistence.
// Rows are insert-once; only status and the linked PR number are mutated.
type DeploymentStore interface {
	// Insert persists a newly observed deployment and returns its id.
	// Inserting the same (application, platform id) twice is an error.
	Insert(ctx context.Context, d model.Deployment) (int64, error)
	// GetByID retrieves a deployment. Returns nil, nil when absent.
	GetByID(ctx context.Context, id int64) (*model.Deployment, error)
	// LatestPlatformID returns the high-water mark for incremental sync,
	// 0 when the application has no deployments yet.
	LatestPlatformID(ctx context.Context, applicationID int64) (int64, error)
	// ListVerifiable returns deployments still eligible for verification,
	// capped at limit. Everything without a final status qualifies, rows
	// awaiting a first verdict ahead of re-checks, oldest first within each
	// group.
	ListVerifiable(ctx context.Context, applicationID int64, limit int) ([]model.Deployment, error)
	// ListUnresolved returns deployments lacking a resolved status, oldest
	// first. Used to build reminder messages.
	ListUnresolved(ctx context.Context, applicationID int64) ([]model.Deployment, error)
	// ListRecent returns the newest deployments for an application, newest
	// first, capped at limit. Used by log caching.
	ListRecent(ctx context.Context, applicationID int64, limit int) ([]model.Deployment, error)
	// UpdateStatus sets the verification status and linked PR number.
	UpdateStatus(ctx context.Context, id int64, status model.DeploymentStatus, prNumber int) error
}
