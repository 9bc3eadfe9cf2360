// Package verify implements the four-eyes verification decision engine and
// the unreviewed-commit auditor. Both are pure over their evidence inputs:
// timestamps are the sole source of truth for ordering, never API response
// order.
package verify

import (
	"fmt"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// FourEyes evaluates whether a pull request satisfies the four-eyes
// principle, given its reviews and commits. automationLogin is non-empty
// when the pull request author is a known automation identity (a
// dependency-update bot); commits authored by that identity after the last
// approval are then tolerated alongside trunk merges.
//
// All ordering uses commit author timestamps and review submission times.
// Reviews without a submission time never qualify as approvals.
func FourEyes(reviews []model.Review, commits []model.Commit, automationLogin string) model.Verdict {
	if len(commits) == 0 {
		return model.Verdict{Verified: false, Reason: "no commits in pull request"}
	}

	last := lastCommit(commits)

	// Primary path: an approval strictly after the last commit settles it.
	for _, r := range reviews {
		if r.Qualifies() && r.SubmittedAt.After(last.AuthoredAt) {
			return model.Verdict{
				Verified: true,
				Reason:   fmt.Sprintf("approved by %s after the last commit", r.Author),
			}
		}
	}

	lastApproval, ok := lastApproval(reviews)
	if !ok {
		return model.Verdict{Verified: false, Reason: "no approved reviews"}
	}

	var after []model.Commit
	for _, c := range commits {
		if c.AuthoredAt.After(lastApproval.SubmittedAt) {
			after = append(after, c)
		}
	}

	// Safety net for clock-skew cases the primary path already covers.
	if len(after) == 0 {
		return model.Verdict{
			Verified: true,
			Reason:   fmt.Sprintf("approved by %s, no commits after approval", lastApproval.Author),
		}
	}

	if allTrunkMerges(after) {
		return model.Verdict{Verified: true, Reason: "only trunk merges after approval"}
	}

	if automationLogin != "" && allAutomationOrTrunkMerge(after, automationLogin) {
		return model.Verdict{Verified: true, Reason: "automation commits after approval"}
	}

	return model.Verdict{Verified: false, Reason: "non-merge commits exist after the last approval"}
}

// lastCommit returns the commit with the maximum author timestamp.
func lastCommit(commits []model.Commit) model.Commit {
	last := commits[0]
	for _, c := range commits[1:] {
		if c.AuthoredAt.After(last.AuthoredAt) {
			last = c
		}
	}
	return last
}

// lastApproval returns the qualifying approval with the maximum submission
// time, or ok=false when there is none.
func lastApproval(reviews []model.Review) (model.Review, bool) {
	var best model.Review
	var found bool
	for _, r := range reviews {
		if !r.Qualifies() {
			continue
		}
		if !found || r.SubmittedAt.After(best.SubmittedAt) {
			best = r
			found = true
		}
	}
	return best, found
}

func allTrunkMerges(commits []model.Commit) bool {
	for _, c := range commits {
		if !IsTrunkMerge(c) {
			return false
		}
	}
	return true
}

func allAutomationOrTrunkMerge(commits []model.Commit, automationLogin string) bool {
	for _, c := range commits {
		if IsTrunkMerge(c) {
			continue
		}
		if c.Author != automationLogin {
			return false
		}
	}
	return true
}
