// Package github implements the GitHubClient and ArtifactStore listing
// ports using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
	"github.com/ericfisherdev/stagegate/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port against a single
// repository, using the go-github library.
type Client struct {
	gh    *gh.Client
	owner string
	repo  string
}

// NewClient creates a GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token, owner, repo string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:    client,
		owner: owner,
		repo:  repo,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and
// base URL. This constructor is intended for testing, allowing injection of
// an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, owner, repo string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:    client,
		owner: owner,
		repo:  repo,
	}, nil
}

// REST exposes the underlying go-github client so sibling adapters sharing
// the same transport stack (artifact listing) can reuse it.
func (c *Client) REST() *gh.Client {
	return c.gh
}

// FetchOpenPullRequests retrieves open pull requests targeting the given
// base branch. It handles pagination automatically and maps go-github types
// to domain model types. Drafts are included; policy code filters them.
func (c *Client) FetchOpenPullRequests(ctx context.Context, base model.StageBranch) ([]model.PullRequestCandidate, error) {
	opts := &gh.PullRequestListOptions{
		State: "open",
		Base:  string(base),
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var all []model.PullRequestCandidate

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing open pull requests on %s (page %d): %w", base, opts.Page, err)
		}

		logRateLimit(resp, "pulls/"+string(base), opts.Page, len(prs))

		for _, pr := range prs {
			all = append(all, mapPullRequest(pr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if all == nil {
		all = []model.PullRequestCandidate{}
	}

	return all, nil
}

// FetchReleaseTags retrieves all published release tags, classified by the
// branch each tag was cut on. Draft releases are skipped. Pagination is
// handled automatically.
func (c *Client) FetchReleaseTags(ctx context.Context) ([]model.ReleaseTag, error) {
	opts := &gh.ListOptions{PerPage: 100}

	var tags []model.ReleaseTag

	for {
		releases, resp, err := c.gh.Repositories.ListReleases(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing releases (page %d): %w", opts.Page, err)
		}

		logRateLimit(resp, "releases", opts.Page, len(releases))

		for _, rel := range releases {
			if rel.GetDraft() {
				continue
			}
			tag := rel.GetTagName()
			if tag == "" {
				continue
			}
			createdAt := rel.GetPublishedAt().Time
			if createdAt.IsZero() {
				createdAt = rel.GetCreatedAt().Time
			}
			tags = append(tags, model.ReleaseTag{
				Tag:       tag,
				Branch:    model.BranchForTag(tag),
				CreatedAt: createdAt,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if tags == nil {
		tags = []model.ReleaseTag{}
	}

	return tags, nil
}

// FetchMergeableState returns GitHub's tri-state mergeable flag for a pull
// request. nil means GitHub hasn't computed the merge commit yet.
func (c *Client) FetchMergeableState(ctx context.Context, prNumber int) (*bool, error) {
	pr, resp, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request #%d: %w", prNumber, err)
	}

	logRateLimit(resp, fmt.Sprintf("pulls/%d", prNumber), 0, 1)

	return pr.Mergeable, nil
}

// mapPullRequest converts a go-github PullRequest to a domain candidate.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest) model.PullRequestCandidate {
	return model.PullRequestCandidate{
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		URL:        pr.GetHTMLURL(),
		HeadRef:    pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		IsDraft:    pr.GetDraft(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
