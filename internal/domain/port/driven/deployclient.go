package driven

import (
	"context"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// DeployClient defines the driven port for the deployment platform's read API.
type DeployClient interface {
	// FetchDeployments returns deployment events for the application with a
	// platform id strictly greater than sinceID, oldest first. sinceID 0
	// returns everything the platform still retains.
	FetchDeployments(ctx context.Context, app model.Application, sinceID int64) ([]model.Deployment, error)
	// FetchDeployEvents returns the platform's status/log events for one
	// deployment, used for log caching.
	FetchDeployEvents(ctx context.Context, app model.Application, platformID int64) ([]model.DeployEvent, error)
}
