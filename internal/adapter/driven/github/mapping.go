package github

import (
	"strings"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// mapReview converts a go-github PullRequestReview to a domain model Review.
// A missing submission time maps to the zero time, which the verifier treats
// as non-qualifying.
func mapReview(r *gh.PullRequestReview) model.Review {
	return model.Review{
		Author:      r.GetUser().GetLogin(),
		State:       model.ReviewState(strings.ToLower(r.GetState())),
		SubmittedAt: r.GetSubmittedAt().Time,
	}
}

// mapCommit converts a go-github RepositoryCommit to a domain model Commit.
// The author timestamp comes from the git author, not the committer, to
// match review submission semantics.
func mapCommit(rc *gh.RepositoryCommit) model.Commit {
	author := rc.GetAuthor().GetLogin()
	if author == "" {
		// Commits whose author has no GitHub account fall back to the git
		// author name.
		author = rc.GetCommit().GetAuthor().GetName()
	}

	return model.Commit{
		SHA:         rc.GetSHA(),
		Author:      author,
		AuthoredAt:  rc.GetCommit().GetAuthor().GetDate().Time,
		ParentCount: len(rc.Parents),
		Message:     rc.GetCommit().GetMessage(),
	}
}

// mapPullRequestRef converts a go-github PullRequest to the domain slice the
// verification path needs.
func mapPullRequestRef(pr *gh.PullRequest) model.PullRequestRef {
	return model.PullRequestRef{
		Number:  pr.GetNumber(),
		Author:  pr.GetUser().GetLogin(),
		BaseSHA: pr.GetBase().GetSHA(),
		HeadSHA: pr.GetHead().GetSHA(),
		Merged:  !pr.GetMergedAt().IsZero(),
	}
}
