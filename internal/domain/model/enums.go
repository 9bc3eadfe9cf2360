package model

// DeploymentStatus represents the verification state of a deployment.
type DeploymentStatus string

const (
	StatusPending                DeploymentStatus = "pending"
	StatusApprovedPR             DeploymentStatus = "approved_pr"
	StatusDirectPush             DeploymentStatus = "direct_push"
	StatusUnverifiedCommits      DeploymentStatus = "unverified_commits"
	StatusManuallyApproved       DeploymentStatus = "manually_approved"
	StatusLegacy                 DeploymentStatus = "legacy"
	StatusError                  DeploymentStatus = "error"
	StatusRepositoryMismatch     DeploymentStatus = "repository_mismatch"
	StatusUnauthorizedRepository DeploymentStatus = "unauthorized_repository"
)

// Resolved returns true when the deployment needs no further verification
// attempts and no reminder. approved_pr is skipped on later incremental syncs
// as an optimization; manually_approved and legacy are administrative finals.
func (s DeploymentStatus) Resolved() bool {
	switch s {
	case StatusApprovedPR, StatusManuallyApproved, StatusLegacy:
		return true
	}
	return false
}

// ReviewState represents the decision of a pull request review.
type ReviewState string

const (
	ReviewStateApproved         ReviewState = "approved"
	ReviewStateChangesRequested ReviewState = "changes_requested"
	ReviewStateCommented        ReviewState = "commented"
	ReviewStateDismissed        ReviewState = "dismissed"
	ReviewStatePending          ReviewState = "pending"
)

// WorkKind names a unit of lock-protected work.
type WorkKind string

const (
	WorkKindNaisSync     WorkKind = "nais_sync"
	WorkKindGitHubVerify WorkKind = "github_verify"
	WorkKindLogCache     WorkKind = "log_cache"
	WorkKindReminderSend WorkKind = "reminder_send"
)

// LockOutcome represents the lifecycle state of a sync lock record.
type LockOutcome string

const (
	LockOutcomeRunning   LockOutcome = "running"
	LockOutcomeCompleted LockOutcome = "completed"
	LockOutcomeFailed    LockOutcome = "failed"
)

// AlertKind classifies an alert raised during sync.
type AlertKind string

const (
	AlertKindRepositoryMismatch AlertKind = "repository_mismatch"
)
