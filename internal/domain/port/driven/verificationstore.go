package driven

import (
	"context"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// VerificationStore defines the driven port for the append-only verification
// audit trail.
type VerificationStore interface {
	// InsertRun persists one verification run and returns its id.
	InsertRun(ctx context.Context, run model.VerificationRun) (int64, error)
	// RunsForDeployment returns all runs for a deployment, newest first.
	RunsForDeployment(ctx context.Context, deploymentID int64) ([]model.VerificationRun, error)
}
