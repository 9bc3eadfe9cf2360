// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// ErrNotFound indicates the upstream source reports the requested object as
// gone (deleted branch, pruned commit, missing pull request). Callers fall
// back to the last known-good snapshot when they see it.
var ErrNotFound = errors.New("object not found upstream")

// SourceControlClient defines the driven port for reading review evidence
// from the source-control host. Implementations handle pagination and rate
// limiting internally; only the returned data shapes matter to the core.
type SourceControlClient interface {
	// FetchPullRequest retrieves metadata for a single pull request.
	FetchPullRequest(ctx context.Context, owner, repo string, number int) (*model.PullRequestRef, error)
	// FetchReviews retrieves all reviews submitted on a pull request.
	FetchReviews(ctx context.Context, owner, repo string, number int) ([]model.Review, error)
	// FetchPullRequestCommits retrieves all commits belonging to a pull request.
	FetchPullRequestCommits(ctx context.Context, owner, repo string, number int) ([]model.Commit, error)
	// CompareCommits returns the commits head has over base (ahead commits only).
	CompareCommits(ctx context.Context, owner, repo, base, head string) ([]model.Commit, error)
	// FetchPullRequestsForCommit returns the pull requests that contain the
	// given commit. Empty slice means the commit reached the branch directly.
	FetchPullRequestsForCommit(ctx context.Context, owner, repo, sha string) ([]model.PullRequestRef, error)
}
