package driven

import (
	"context"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// ApplicationStore defines the driven port for monitored-application
// persistence.
type ApplicationStore interface {
	// Upsert inserts or updates the application keyed by (team, name,
	// environment) and returns the stored row.
	Upsert(ctx context.Context, app model.Application) (model.Application, error)
	// GetByID retrieves an application. Returns nil, nil when absent.
	GetByID(ctx context.Context, id int64) (*model.Application, error)
	// ListAll returns all monitored applications ordered by team then name.
	ListAll(ctx context.Context) ([]model.Application, error)
	// ListWithReminders returns applications with reminders enabled.
	ListWithReminders(ctx context.Context) ([]model.Application, error)
}
