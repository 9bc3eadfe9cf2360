package verify

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// EvidenceLookup is the narrow read interface the auditor needs. The
// application layer implements it on top of the snapshot-backed evidence
// service so the audit logic stays pure and testable.
type EvidenceLookup interface {
	// AheadCommits returns the commits head has over base.
	AheadCommits(ctx context.Context, owner, repo, base, head string) ([]model.Commit, error)
	// PullRequestsForCommit returns the pull requests containing the commit.
	PullRequestsForCommit(ctx context.Context, owner, repo, sha string) ([]model.PullRequestRef, error)
	// PullRequestEvidence returns the reviews and commits for a pull request.
	PullRequestEvidence(ctx context.Context, owner, repo string, number int) ([]model.Review, []model.Commit, error)
}

// FlaggedCommit is one commit that reached the deployed branch without a
// verified review of its own.
type FlaggedCommit struct {
	SHA    string
	Reason string
}

// AuditRange walks the commit range between a pull request's base and the
// branch head at merge time, flagging commits that slipped in without their
// own reviewed pull request. prCommits is the set of shas belonging to the
// pull request under verification; automationLogin names the recognized
// automation identity for the recursive checks.
//
// The expansion is bounded to one level: a flagged commit's own pull request
// is verified, but nothing beyond it. An iterative worklist keeps the number
// of lookups proportional to the range size.
func AuditRange(
	ctx context.Context,
	lookup EvidenceLookup,
	owner, repo, base, head string,
	prCommits map[string]bool,
	automationLogin string,
) ([]FlaggedCommit, error) {
	ahead, err := lookup.AheadCommits(ctx, owner, repo, base, head)
	if err != nil {
		return nil, fmt.Errorf("compare %s...%s in %s/%s: %w", base, head, owner, repo, err)
	}

	var worklist []model.Commit
	for _, c := range ahead {
		if !prCommits[c.SHA] {
			worklist = append(worklist, c)
		}
	}

	// Verdicts per pull request number, so a pull request shared by several
	// stray commits is verified only once.
	verdicts := make(map[int]model.Verdict)

	var flagged []FlaggedCommit
	for _, c := range worklist {
		prs, err := lookup.PullRequestsForCommit(ctx, owner, repo, c.SHA)
		if err != nil {
			return nil, fmt.Errorf("pull requests for commit %s: %w", c.SHA, err)
		}

		if len(prs) == 0 {
			flagged = append(flagged, FlaggedCommit{SHA: c.SHA, Reason: "direct push to trunk"})
			continue
		}

		pr := prs[0]
		verdict, ok := verdicts[pr.Number]
		if !ok {
			reviews, commits, err := lookup.PullRequestEvidence(ctx, owner, repo, pr.Number)
			if err != nil {
				return nil, fmt.Errorf("evidence for pull request #%d: %w", pr.Number, err)
			}
			login := ""
			if pr.Author == automationLogin {
				login = automationLogin
			}
			verdict = FourEyes(reviews, commits, login)
			verdicts[pr.Number] = verdict
		}

		if !verdict.Verified {
			flagged = append(flagged, FlaggedCommit{SHA: c.SHA, Reason: verdict.Reason})
		}
	}

	return flagged, nil
}
