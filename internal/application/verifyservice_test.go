package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/foureyes/internal/application"
	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

func testApp() model.Application {
	return model.Application{
		ID:            1,
		Name:          "myapp",
		Team:          "myteam",
		Environment:   "prod",
		ApprovedOwner: "navikt",
		ApprovedRepo:  "myapp",
	}
}

func pendingDeployment(deployments *mockDeploymentStore, platformID int64, sha string) int64 {
	id, _ := deployments.Insert(context.Background(), model.Deployment{
		ApplicationID: 1,
		PlatformID:    platformID,
		CommitSHA:     sha,
		DetectedOwner: "navikt",
		DetectedRepo:  "myapp",
		DeployedAt:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	})
	return id
}

// verifyFixture wires a VerifyService over mocks.
type verifyFixture struct {
	deployments   *mockDeploymentStore
	verifications *mockVerificationStore
	source        *mockSourceControl
	snapshots     *mockSnapshotStore
	svc           *application.VerifyService
}

func newVerifyFixture(legacyCutoff time.Time) *verifyFixture {
	f := &verifyFixture{
		deployments:   &mockDeploymentStore{},
		verifications: &mockVerificationStore{},
		source:        &mockSourceControl{},
		snapshots:     &mockSnapshotStore{},
	}
	evidence := application.NewEvidenceService(f.source, f.snapshots)
	f.svc = application.NewVerifyService(
		f.deployments, f.verifications, evidence,
		[]string{"dependabot[bot]"}, legacyCutoff,
	)
	return f
}

func TestVerifyDeployments_ApprovedPR(t *testing.T) {
	f := newVerifyFixture(time.Time{})
	id := pendingDeployment(f.deployments, 100, "headsha")

	f.source.prsForCommit = func(_ context.Context, _, _, sha string) ([]model.PullRequestRef, error) {
		return []model.PullRequestRef{{Number: 42, Author: "dev-a", BaseSHA: "basesha", Merged: true}}, nil
	}
	f.source.fetchReviews = func(_ context.Context, _, _ string, _ int) ([]model.Review, error) {
		return []model.Review{{Author: "dev-b", State: model.ReviewStateApproved, SubmittedAt: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)}}, nil
	}
	f.source.fetchCommits = func(_ context.Context, _, _ string, _ int) ([]model.Commit, error) {
		return []model.Commit{{SHA: "headsha", Author: "dev-a", AuthoredAt: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), ParentCount: 1}}, nil
	}
	f.source.compareCommits = func(_ context.Context, _, _, base, head string) ([]model.Commit, error) {
		assert.Equal(t, "basesha", base)
		assert.Equal(t, "headsha", head)
		return []model.Commit{{SHA: "headsha", Author: "dev-a", ParentCount: 1}}, nil
	}

	summary, err := f.svc.VerifyDeployments(context.Background(), testApp(), 5)

	require.NoError(t, err)
	assert.Equal(t, application.VerifySummary{Verified: 1}, summary)

	d, err := f.deployments.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApprovedPR, d.Status)
	assert.Equal(t, 42, d.PRNumber)

	require.Len(t, f.verifications.runs, 1)
	run := f.verifications.runs[0]
	assert.True(t, run.FourEyes)
	assert.Equal(t, model.StatusApprovedPR, run.Status)
	// Snapshot audit trail: prs_for_commit, reviews, commits, compare.
	assert.Len(t, run.SnapshotIDs, 4)
}

func TestVerifyDeployments_DirectPush(t *testing.T) {
	f := newVerifyFixture(time.Time{})
	id := pendingDeployment(f.deployments, 100, "headsha")

	f.source.prsForCommit = func(_ context.Context, _, _, _ string) ([]model.PullRequestRef, error) {
		return nil, nil
	}

	summary, err := f.svc.VerifyDeployments(context.Background(), testApp(), 5)

	require.NoError(t, err)
	assert.Equal(t, application.VerifySummary{Skipped: 1}, summary)

	d, _ := f.deployments.GetByID(context.Background(), id)
	assert.Equal(t, model.StatusDirectPush, d.Status)

	require.Len(t, f.verifications.runs, 1)
	assert.False(t, f.verifications.runs[0].FourEyes)
	assert.Equal(t, "no pull request found for deployed commit", f.verifications.runs[0].Reason)
}

func TestVerifyDeployments_UnverifiedCommitsInRange(t *testing.T) {
	f := newVerifyFixture(time.Time{})
	id := pendingDeployment(f.deployments, 100, "headsha")

	f.source.prsForCommit = func(_ context.Context, _, _, sha string) ([]model.PullRequestRef, error) {
		if sha == "headsha" {
			return []model.PullRequestRef{{Number: 42, Author: "dev-a", BaseSHA: "basesha"}}, nil
		}
		// The stray commit has no pull request at all.
		return nil, nil
	}
	f.source.fetchReviews = func(_ context.Context, _, _ string, _ int) ([]model.Review, error) {
		return []model.Review{{Author: "dev-b", State: model.ReviewStateApproved, SubmittedAt: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)}}, nil
	}
	f.source.fetchCommits = func(_ context.Context, _, _ string, _ int) ([]model.Commit, error) {
		return []model.Commit{{SHA: "headsha", Author: "dev-a", AuthoredAt: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), ParentCount: 1}}, nil
	}
	f.source.compareCommits = func(_ context.Context, _, _, _, _ string) ([]model.Commit, error) {
		return []model.Commit{
			{SHA: "headsha", Author: "dev-a", ParentCount: 1},
			{SHA: "stray77sha", Author: "dev-c", ParentCount: 1},
		}, nil
	}

	summary, err := f.svc.VerifyDeployments(context.Background(), testApp(), 5)

	require.NoError(t, err)
	assert.Equal(t, application.VerifySummary{Skipped: 1}, summary)

	d, _ := f.deployments.GetByID(context.Background(), id)
	assert.Equal(t, model.StatusUnverifiedCommits, d.Status)

	require.Len(t, f.verifications.runs, 1)
	run := f.verifications.runs[0]
	assert.False(t, run.FourEyes)
	assert.Contains(t, run.Reason, "unreviewed commits in deployed range")
	assert.Contains(t, run.Reason, "stray77")
	assert.Contains(t, run.Reason, "direct push to trunk")
}

func TestVerifyDeployments_RetroactiveApprovalClearsFlaggedDeployment(t *testing.T) {
	f := newVerifyFixture(time.Time{})
	id := pendingDeployment(f.deployments, 100, "headsha")
	require.NoError(t, f.deployments.UpdateStatus(context.Background(), id, model.StatusUnverifiedCommits, 42))

	f.source.prsForCommit = func(_ context.Context, _, _, _ string) ([]model.PullRequestRef, error) {
		return []model.PullRequestRef{{Number: 42, Author: "dev-a", BaseSHA: "basesha", Merged: true}}, nil
	}
	// The approval arrived after the deployment was first flagged, later than
	// the last commit.
	f.source.fetchReviews = func(_ context.Context, _, _ string, _ int) ([]model.Review, error) {
		return []model.Review{{Author: "dev-b", State: model.ReviewStateApproved, SubmittedAt: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)}}, nil
	}
	f.source.fetchCommits = func(_ context.Context, _, _ string, _ int) ([]model.Commit, error) {
		return []model.Commit{{SHA: "headsha", Author: "dev-a", AuthoredAt: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), ParentCount: 1}}, nil
	}
	f.source.compareCommits = func(_ context.Context, _, _, _, _ string) ([]model.Commit, error) {
		return []model.Commit{{SHA: "headsha", Author: "dev-a", ParentCount: 1}}, nil
	}

	summary, err := f.svc.VerifyDeployments(context.Background(), testApp(), 5)

	require.NoError(t, err)
	assert.Equal(t, application.VerifySummary{Verified: 1}, summary)

	d, _ := f.deployments.GetByID(context.Background(), id)
	assert.Equal(t, model.StatusApprovedPR, d.Status)
	assert.Equal(t, 42, d.PRNumber)

	require.Len(t, f.verifications.runs, 1)
	assert.True(t, f.verifications.runs[0].FourEyes)
}

func TestVerifyDeployments_UnauthorizedRepository(t *testing.T) {
	f := newVerifyFixture(time.Time{})
	id, err := f.deployments.Insert(context.Background(), model.Deployment{
		ApplicationID: 1,
		PlatformID:    100,
		CommitSHA:     "headsha",
		DetectedOwner: "evil",
		DetectedRepo:  "fork",
		DeployedAt:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	summary, err := f.svc.VerifyDeployments(context.Background(), testApp(), 5)

	require.NoError(t, err)
	assert.Equal(t, application.VerifySummary{Skipped: 1}, summary)

	d, _ := f.deployments.GetByID(context.Background(), id)
	assert.Equal(t, model.StatusUnauthorizedRepository, d.Status)

	require.Len(t, f.verifications.runs, 1)
	assert.Contains(t, f.verifications.runs[0].Reason, "evil/fork")
	assert.Contains(t, f.verifications.runs[0].Reason, "navikt/myapp")
}

func TestVerifyDeployments_LegacyCutoff(t *testing.T) {
	cutoff := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	f := newVerifyFixture(cutoff)
	id := pendingDeployment(f.deployments, 100, "headsha") // deployed 2026-03-10

	summary, err := f.svc.VerifyDeployments(context.Background(), testApp(), 5)

	require.NoError(t, err)
	assert.Equal(t, application.VerifySummary{Skipped: 1}, summary)

	d, _ := f.deployments.GetByID(context.Background(), id)
	assert.Equal(t, model.StatusLegacy, d.Status)
	require.Len(t, f.verifications.runs, 1)
	assert.Equal(t, "deployed before monitoring started", f.verifications.runs[0].Reason)
}

func TestVerifyDeployments_EvidenceFailureFailsClosed(t *testing.T) {
	f := newVerifyFixture(time.Time{})
	id := pendingDeployment(f.deployments, 100, "headsha")

	f.source.prsForCommit = func(_ context.Context, _, _, _ string) ([]model.PullRequestRef, error) {
		return nil, errors.New("rate limited")
	}

	summary, err := f.svc.VerifyDeployments(context.Background(), testApp(), 5)

	require.NoError(t, err)
	assert.Equal(t, application.VerifySummary{Failed: 1}, summary)

	d, _ := f.deployments.GetByID(context.Background(), id)
	assert.Equal(t, model.StatusError, d.Status)

	require.Len(t, f.verifications.runs, 1)
	assert.Equal(t, model.StatusError, f.verifications.runs[0].Status)
	assert.NotEmpty(t, f.verifications.runs[0].Reason)
}

func TestVerifyDeployments_RespectsLimit(t *testing.T) {
	f := newVerifyFixture(time.Time{})
	pendingDeployment(f.deployments, 100, "aaa")
	pendingDeployment(f.deployments, 101, "bbb")
	pendingDeployment(f.deployments, 102, "ccc")

	f.source.prsForCommit = func(_ context.Context, _, _, _ string) ([]model.PullRequestRef, error) {
		return nil, nil
	}

	summary, err := f.svc.VerifyDeployments(context.Background(), testApp(), 2)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Len(t, f.verifications.runs, 2)
}

func TestManuallyApprove(t *testing.T) {
	f := newVerifyFixture(time.Time{})
	id := pendingDeployment(f.deployments, 100, "headsha")
	require.NoError(t, f.deployments.UpdateStatus(context.Background(), id, model.StatusUnverifiedCommits, 42))

	err := f.svc.ManuallyApprove(context.Background(), id, "lead-dev", "hotfix, reviewed in retrospect")

	require.NoError(t, err)
	d, _ := f.deployments.GetByID(context.Background(), id)
	assert.Equal(t, model.StatusManuallyApproved, d.Status)
	// The linked pull request number survives the override.
	assert.Equal(t, 42, d.PRNumber)

	require.Len(t, f.verifications.runs, 1)
	run := f.verifications.runs[0]
	assert.Equal(t, "lead-dev", run.Actor)
	assert.Equal(t, "hotfix, reviewed in retrospect", run.Reason)
	assert.False(t, run.FourEyes)
}

func TestManuallyApprove_MissingDeployment(t *testing.T) {
	f := newVerifyFixture(time.Time{})

	err := f.svc.ManuallyApprove(context.Background(), 9999, "lead-dev", "")

	assert.Error(t, err)
	assert.Empty(t, f.verifications.runs)
}
