package model

import "time"

// Deployment is one platform-triggered release of a monitored application.
// Rows are created when first observed from the deployment platform and are
// never deleted; only Status and PRNumber are mutated afterwards, by the
// verification path.
type Deployment struct {
	ID            int64
	ApplicationID int64
	// PlatformID is the deployment platform's own identifier, used as the
	// high-water mark for incremental sync.
	PlatformID int64
	CommitSHA  string
	Deployer   string
	// DetectedOwner/DetectedRepo come from the platform event and may differ
	// from the application's approved repository.
	DetectedOwner string
	DetectedRepo  string
	Cluster       string
	Status        DeploymentStatus
	// PRNumber is the linked pull request, 0 when none has been resolved.
	PRNumber   int
	DeployedAt time.Time
	ObservedAt time.Time
}

// DetectedFullName returns "owner/repo" as reported by the platform.
func (d Deployment) DetectedFullName() string {
	return d.DetectedOwner + "/" + d.DetectedRepo
}

// ShortSHA returns the abbreviated commit reference used in notifications.
func (d Deployment) ShortSHA() string {
	if len(d.CommitSHA) > 7 {
		return d.CommitSHA[:7]
	}
	return d.CommitSHA
}
