package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
	"github.com/ericfisherdev/foureyes/internal/domain/verify"
)

// VerifyService drives the four-eyes verification of observed deployments:
// it resolves the pull request behind each deployed commit, evaluates the
// evidence, audits the commit range for stray commits, and persists both the
// verdict and the audit trail.
type VerifyService struct {
	deployments   driven.DeploymentStore
	verifications driven.VerificationStore
	evidence      *EvidenceService
	// automationLogins are identities whose pull requests get the relaxed
	// post-approval commit policy (dependency-update bots).
	automationLogins []string
	// legacyCutoff marks the start of monitoring; deployments older than it
	// are recorded as legacy and not verified. Zero disables the cutoff.
	legacyCutoff time.Time
}

// NewVerifyService creates a VerifyService.
func NewVerifyService(
	deployments driven.DeploymentStore,
	verifications driven.VerificationStore,
	evidence *EvidenceService,
	automationLogins []string,
	legacyCutoff time.Time,
) *VerifyService {
	return &VerifyService{
		deployments:      deployments,
		verifications:    verifications,
		evidence:         evidence,
		automationLogins: automationLogins,
		legacyCutoff:     legacyCutoff,
	}
}

// VerifySummary reports one VerifyDeployments invocation.
type VerifySummary struct {
	Verified int `json:"verified"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// VerifyDeployments verifies up to limit unresolved deployments of the
// application, first-pass rows before re-checks, oldest first. The limit is
// the per-cycle back-pressure cap against source-control API rate limits.
// Errors on individual deployments are recorded as the error status and do
// not abort the batch.
func (s *VerifyService) VerifyDeployments(ctx context.Context, app model.Application, limit int) (VerifySummary, error) {
	var summary VerifySummary

	pending, err := s.deployments.ListVerifiable(ctx, app.ID, limit)
	if err != nil {
		return summary, err
	}

	for _, d := range pending {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		status, run, err := s.verifyOne(ctx, app, d)
		if err != nil {
			// Evidence-unavailable and unexpected failures both land in the
			// error status: fail closed, retry on a later cycle.
			slog.Error("verification failed", "app", app.Name, "deployment", d.ID, "error", err)
			status = model.StatusError
			run = verificationRunWithPR{VerificationRun: model.VerificationRun{
				DeploymentID: d.ID,
				Status:       model.StatusError,
				Reason:       err.Error(),
			}}
			run.PR = d.PRNumber
			summary.Failed++
		} else if status == model.StatusApprovedPR {
			summary.Verified++
		} else {
			summary.Skipped++
		}

		if _, err := s.verifications.InsertRun(ctx, run.VerificationRun); err != nil {
			slog.Error("persist verification run failed", "deployment", d.ID, "error", err)
			continue
		}
		if err := s.deployments.UpdateStatus(ctx, d.ID, status, run.PR); err != nil {
			slog.Error("update deployment status failed", "deployment", d.ID, "error", err)
		}

		slog.Info("deployment verified",
			"app", app.Name,
			"deployment", d.ID,
			"commit", d.ShortSHA(),
			"status", string(status),
			"reason", run.Reason,
		)
	}

	return summary, nil
}

// verificationRunWithPR carries the resolved pull request number alongside
// the run so VerifyDeployments can update the deployment row.
type verificationRunWithPR struct {
	model.VerificationRun
	PR int
}

func (s *VerifyService) verifyOne(ctx context.Context, app model.Application, d model.Deployment) (model.DeploymentStatus, verificationRunWithPR, error) {
	if !s.legacyCutoff.IsZero() && d.DeployedAt.Before(s.legacyCutoff) {
		return model.StatusLegacy, verificationRunWithPR{VerificationRun: model.VerificationRun{
			DeploymentID: d.ID,
			Status:       model.StatusLegacy,
			Reason:       "deployed before monitoring started",
		}}, nil
	}

	if d.DetectedOwner != app.ApprovedOwner || d.DetectedRepo != app.ApprovedRepo {
		return model.StatusUnauthorizedRepository, verificationRunWithPR{VerificationRun: model.VerificationRun{
			DeploymentID: d.ID,
			Status:       model.StatusUnauthorizedRepository,
			Reason:       fmt.Sprintf("deployed from %s, approved repository is %s", d.DetectedFullName(), app.ApprovedFullName()),
		}}, nil
	}

	session := s.evidence.Session()
	owner, repo := d.DetectedOwner, d.DetectedRepo

	prs, err := session.PullRequestsForCommit(ctx, owner, repo, d.CommitSHA)
	if err != nil {
		return "", verificationRunWithPR{}, err
	}

	if len(prs) == 0 {
		return model.StatusDirectPush, verificationRunWithPR{VerificationRun: model.VerificationRun{
			DeploymentID: d.ID,
			Status:       model.StatusDirectPush,
			Reason:       "no pull request found for deployed commit",
			SnapshotIDs:  session.SnapshotIDs(),
		}}, nil
	}

	pr := prs[0]
	reviews, commits, err := session.PullRequestEvidence(ctx, owner, repo, pr.Number)
	if err != nil {
		return "", verificationRunWithPR{}, err
	}

	automationLogin := s.automationLogin(pr.Author)
	verdict := verify.FourEyes(reviews, commits, automationLogin)

	status := model.StatusUnverifiedCommits
	reason := verdict.Reason

	if verdict.Verified {
		prCommits := make(map[string]bool, len(commits))
		for _, c := range commits {
			prCommits[c.SHA] = true
		}

		flagged, err := verify.AuditRange(ctx, session, owner, repo, pr.BaseSHA, d.CommitSHA, prCommits, s.firstAutomationLogin())
		if err != nil {
			return "", verificationRunWithPR{}, err
		}

		if len(flagged) == 0 {
			status = model.StatusApprovedPR
		} else {
			reason = flaggedReason(flagged)
		}
	}

	return status, verificationRunWithPR{
		VerificationRun: model.VerificationRun{
			DeploymentID: d.ID,
			Status:       status,
			FourEyes:     status == model.StatusApprovedPR,
			Reason:       reason,
			SnapshotIDs:  session.SnapshotIDs(),
		},
		PR: pr.Number,
	}, nil
}

// ManuallyApprove records an administrative override for a deployment. The
// actor is kept in the audit trail; the deployment keeps its linked pull
// request number if one was resolved earlier.
func (s *VerifyService) ManuallyApprove(ctx context.Context, deploymentID int64, actor, reason string) error {
	d, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("deployment %d not found", deploymentID)
	}

	if reason == "" {
		reason = "manually approved"
	}

	run := model.VerificationRun{
		DeploymentID: deploymentID,
		Status:       model.StatusManuallyApproved,
		FourEyes:     false,
		Reason:       reason,
		Actor:        actor,
	}
	if _, err := s.verifications.InsertRun(ctx, run); err != nil {
		return err
	}
	return s.deployments.UpdateStatus(ctx, deploymentID, model.StatusManuallyApproved, d.PRNumber)
}

func (s *VerifyService) automationLogin(prAuthor string) string {
	for _, login := range s.automationLogins {
		if strings.EqualFold(login, prAuthor) {
			return login
		}
	}
	return ""
}

// firstAutomationLogin is the identity the auditor compares stray-commit
// pull request authors against.
func (s *VerifyService) firstAutomationLogin() string {
	if len(s.automationLogins) > 0 {
		return s.automationLogins[0]
	}
	return ""
}

func flaggedReason(flagged []verify.FlaggedCommit) string {
	parts := make([]string, 0, len(flagged))
	for _, f := range flagged {
		sha := f.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", sha, f.Reason))
	}
	return "unreviewed commits in deployed range: " + strings.Join(parts, ", ")
}

// IsEvidenceUnavailable reports whether an error chain bottomed out in
// missing evidence, for callers that want to distinguish it in logs.
func IsEvidenceUnavailable(err error) bool {
	return errors.Is(err, ErrEvidenceUnavailable)
}
