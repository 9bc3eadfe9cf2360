package model

import "time"

// Verdict is the outcome of one four-eyes evaluation of a pull request.
type Verdict struct {
	Verified bool
	Reason   string
}

// VerificationRun is one audit-trail entry per verification execution.
// Rows are append-only; a deployment may accumulate several runs through
// manual re-verification or error recovery.
type VerificationRun struct {
	ID           int64
	DeploymentID int64
	Status       DeploymentStatus
	FourEyes     bool
	Reason       string
	// SnapshotIDs lists the evidence snapshot rows consulted by this run.
	SnapshotIDs   []int64
	SchemaVersion int
	// Actor is set for manual operations (re-verification, manual approval);
	// empty for scheduled runs.
	Actor     string
	CreatedAt time.Time
}
