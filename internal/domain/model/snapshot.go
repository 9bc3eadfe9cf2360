package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotSchemaVersion tags the payload shape of newly written snapshots.
// Bumping it invalidates old rows for Latest() reads without deleting them.
const SnapshotSchemaVersion = 2

// SnapshotDataType tags what kind of fact a snapshot captures.
type SnapshotDataType string

const (
	DataTypeReviews      SnapshotDataType = "reviews"
	DataTypeCommits      SnapshotDataType = "commits"
	DataTypeCompare      SnapshotDataType = "compare"
	DataTypePRsForCommit SnapshotDataType = "prs_for_commit"
	DataTypeDeployEvents SnapshotDataType = "deploy_events"
)

// SnapshotOrigin records where a snapshot's payload came from.
type SnapshotOrigin string

const (
	OriginFetched SnapshotOrigin = "fetched"
	OriginCached  SnapshotOrigin = "cached"
)

// SnapshotScope identifies the object a snapshot describes. Ref is the
// type-dependent reference: a pull request number, a commit sha, or a
// "base...head" compare range.
type SnapshotScope struct {
	Owner string
	Repo  string
	Ref   string
}

// String renders the scope for logging.
func (s SnapshotScope) String() string {
	return s.Owner + "/" + s.Repo + "@" + s.Ref
}

// Snapshot is one immutable capture of externally-sourced evidence.
// Rows are never updated or overwritten; a new fact is always a new row.
type Snapshot struct {
	ID            int64
	Scope         SnapshotScope
	DataType      SnapshotDataType
	SchemaVersion int
	CapturedAt    time.Time
	Origin        SnapshotOrigin
	// Available is false when the upstream source has since reported the
	// object as gone; the payload then preserves the last known-good value.
	Available bool
	Payload   []byte
}

// ReviewsPayload is the typed payload behind DataTypeReviews.
type ReviewsPayload struct {
	Reviews []Review `json:"reviews"`
}

// CommitsPayload is the typed payload behind DataTypeCommits.
type CommitsPayload struct {
	Commits []Commit `json:"commits"`
}

// ComparePayload is the typed payload behind DataTypeCompare. AheadCommits
// are the commits head has over base, in chronological order.
type ComparePayload struct {
	AheadCommits []Commit `json:"ahead_commits"`
}

// PRRefsPayload is the typed payload behind DataTypePRsForCommit.
type PRRefsPayload struct {
	PullRequests []PullRequestRef `json:"pull_requests"`
}

// DeployEventsPayload is the typed payload behind DataTypeDeployEvents.
type DeployEventsPayload struct {
	Events []DeployEvent `json:"events"`
}

// DeployEvent is one platform status/log event cached for a deployment.
type DeployEvent struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// EncodePayload serializes a typed payload for storage in a snapshot.
func EncodePayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot payload: %w", err)
	}
	return data, nil
}

// DecodeReviews decodes the snapshot payload as a ReviewsPayload.
func (s Snapshot) DecodeReviews() (ReviewsPayload, error) {
	var p ReviewsPayload
	return p, s.decode(DataTypeReviews, &p)
}

// DecodeCommits decodes the snapshot payload as a CommitsPayload.
func (s Snapshot) DecodeCommits() (CommitsPayload, error) {
	var p CommitsPayload
	return p, s.decode(DataTypeCommits, &p)
}

// DecodeCompare decodes the snapshot payload as a ComparePayload.
func (s Snapshot) DecodeCompare() (ComparePayload, error) {
	var p ComparePayload
	return p, s.decode(DataTypeCompare, &p)
}

// DecodePRRefs decodes the snapshot payload as a PRRefsPayload.
func (s Snapshot) DecodePRRefs() (PRRefsPayload, error) {
	var p PRRefsPayload
	return p, s.decode(DataTypePRsForCommit, &p)
}

func (s Snapshot) decode(want SnapshotDataType, dst any) error {
	if s.DataType != want {
		return fmt.Errorf("snapshot %d has data type %q, want %q", s.ID, s.DataType, want)
	}
	if err := json.Unmarshal(s.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload for %s: %w", s.DataType, s.Scope, err)
	}
	return nil
}
