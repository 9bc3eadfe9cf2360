package driven

import (
	"context"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// Notifier defines the driven port for chat notification delivery.
// Both methods return a delivery token; an empty token with a nil error means
// the collaborator accepted the call but did not deliver (treated as a failed
// send by callers).
type Notifier interface {
	// SendReminder delivers a reminder about unresolved deployments.
	SendReminder(ctx context.Context, msg model.ReminderMessage) (string, error)
	// SendAlert delivers a single alert raised during sync.
	SendAlert(ctx context.Context, app model.Application, alert model.Alert) (string, error)
}
