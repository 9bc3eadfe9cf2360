package verify

import (
	"regexp"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

// trunkMergePattern recognizes commit messages produced by merging the trunk
// branch into a feature branch, in the phrasings git generates:
//
//	Merge branch 'main' into feature-x
//	Merge branch 'master'
//	Merge remote-tracking branch 'origin/main' into feature-x
//	Merge remote-tracking branch 'origin/master'
var trunkMergePattern = regexp.MustCompile(`(?i)^merge (?:remote-tracking )?branch '(?:origin/)?(?:main|master)'`)

// IsTrunkMerge reports whether the commit is a merge of the trunk branch: it
// must have at least two parents and a message matching the recognized merge
// phrasings. Squashed merges have one parent and do not qualify.
func IsTrunkMerge(c model.Commit) bool {
	return c.ParentCount >= 2 && trunkMergePattern.MatchString(c.Message)
}
