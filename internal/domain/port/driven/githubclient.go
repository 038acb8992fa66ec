package driven

import (
	"context"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
)

// GitHubClient defines the driven port for the GitHub REST API queries the
// promotion flow needs. Implementations handle pagination and auth; callers
// receive domain types only.
type GitHubClient interface {
	// FetchOpenPullRequests lists open pull requests targeting the given
	// base branch, drafts included (the caller filters).
	FetchOpenPullRequests(ctx context.Context, base model.StageBranch) ([]model.PullRequestCandidate, error)
	// FetchReleaseTags lists all published (non-draft) release tags,
	// classified by the branch each tag was cut on.
	FetchReleaseTags(ctx context.Context) ([]model.ReleaseTag, error)
	// FetchMergeableState returns GitHub's tri-state mergeable flag for a
	// pull request: nil while the merge commit is still being computed.
	FetchMergeableState(ctx context.Context, prNumber int) (*bool, error)
}
