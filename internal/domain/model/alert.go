package model

import "time"

// Alert is a persisted anomaly raised during sync, flushed to the
// notification channel by the orchestrator. NotifiedAt is zero until the
// alert has been delivered.
type Alert struct {
	ID            int64
	ApplicationID int64
	Kind          AlertKind
	Detail        string
	CreatedAt     time.Time
	NotifiedAt    time.Time
}

// Notified reports whether the alert has already been delivered.
func (a Alert) Notified() bool {
	return !a.NotifiedAt.IsZero()
}
