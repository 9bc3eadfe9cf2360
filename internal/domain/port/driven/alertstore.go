package driven

import (
	"context"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// AlertStore defines the driven port for sync alert persistence.
type AlertStore interface {
	// Insert persists a new alert and returns its id.
	Insert(ctx context.Context, alert model.Alert) (int64, error)
	// ListUnnotified returns alerts not yet delivered, oldest first.
	ListUnnotified(ctx context.Context) ([]model.Alert, error)
	// MarkNotified records the delivery time for an alert.
	MarkNotified(ctx context.Context, alertID int64) error
}
