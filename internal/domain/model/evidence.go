package model

import "time"

// Review is one review submitted on a pull request.
// A zero SubmittedAt means the upstream API reported no submission time;
// such reviews never qualify as approvals in the verification ordering.
type Review struct {
	Author      string
	State       ReviewState
	SubmittedAt time.Time
}

// Qualifies reports whether the review counts as an approval for ordering
// purposes.
func (r Review) Qualifies() bool {
	return r.State == ReviewStateApproved && !r.SubmittedAt.IsZero()
}

// Commit is one commit belonging to a pull request or a compare range.
// AuthoredAt is the author timestamp, not the committer timestamp; review
// submission times are compared against it.
type Commit struct {
	SHA         string
	Author      string
	AuthoredAt  time.Time
	ParentCount int
	Message     string
}

// PullRequestRef is the slice of pull request metadata the verification path
// needs: enough to locate evidence and to attribute authorship.
type PullRequestRef struct {
	Number  int
	Author  string
	BaseSHA string
	HeadSHA string
	Merged  bool
}
