package model

import "time"

// SyncLock is one cross-process lock claim. At most one live (running,
// non-expired) lock may exist per (WorkKind, TargetID); released and expired
// rows are kept as an audit log of work performed.
type SyncLock struct {
	ID       int64
	WorkKind WorkKind
	// TargetID is the application the work applies to.
	TargetID   int64
	Holder     string
	AcquiredAt time.Time
	ExpiresAt  time.Time
	ReleasedAt time.Time
	Outcome    LockOutcome
	// Result holds a JSON summary of the completed work.
	Result string
	Error  string
}

// Live reports whether the lock still excludes other holders at the given time.
func (l SyncLock) Live(now time.Time) bool {
	return l.Outcome == LockOutcomeRunning && l.ExpiresAt.After(now)
}
