// Package github implements the SourceControlClient port using the go-github
// library.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SourceControlClient = (*Client)(nil)

// Client implements the driven.SourceControlClient port using go-github.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// FetchPullRequest retrieves metadata for a single pull request. A 404 from
// the API maps to driven.ErrNotFound.
func (c *Client) FetchPullRequest(ctx context.Context, owner, repo string, number int) (*model.PullRequestRef, error) {
	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, wrapAPIError(resp, fmt.Errorf("get pull request %s/%s#%d: %w", owner, repo, number, err))
	}

	ref := mapPullRequestRef(pr)
	return &ref, nil
}

// FetchReviews retrieves all reviews submitted on a pull request, handling
// pagination.
func (c *Client) FetchReviews(ctx context.Context, owner, repo string, number int) ([]model.Review, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var all []model.Review

	for {
		reviews, resp, err := c.gh.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, wrapAPIError(resp, fmt.Errorf("listing reviews for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, err))
		}

		for _, r := range reviews {
			all = append(all, mapReview(r))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// FetchPullRequestCommits retrieves all commits belonging to a pull request,
// handling pagination.
func (c *Client) FetchPullRequestCommits(ctx context.Context, owner, repo string, number int) ([]model.Commit, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var all []model.Commit

	for {
		commits, resp, err := c.gh.PullRequests.ListCommits(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, wrapAPIError(resp, fmt.Errorf("listing commits for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, err))
		}

		for _, rc := range commits {
			all = append(all, mapCommit(rc))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// CompareCommits returns the commits head has over base (ahead commits
// only), handling pagination.
func (c *Client) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]model.Commit, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var all []model.Commit

	for {
		cmp, resp, err := c.gh.Repositories.CompareCommits(ctx, owner, repo, base, head, opts)
		if err != nil {
			return nil, wrapAPIError(resp, fmt.Errorf("comparing %s...%s in %s/%s (page %d): %w", base, head, owner, repo, opts.Page, err))
		}

		for _, rc := range cmp.Commits {
			all = append(all, mapCommit(rc))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// FetchPullRequestsForCommit returns the pull requests that contain the
// given commit. An empty result means the commit reached its branch without
// a pull request.
func (c *Client) FetchPullRequestsForCommit(ctx context.Context, owner, repo, sha string) ([]model.PullRequestRef, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var all []model.PullRequestRef

	for {
		prs, resp, err := c.gh.PullRequests.ListPullRequestsWithCommit(ctx, owner, repo, sha, opts)
		if err != nil {
			return nil, wrapAPIError(resp, fmt.Errorf("listing pull requests for commit %s in %s/%s (page %d): %w", sha, owner, repo, opts.Page, err))
		}

		for _, pr := range prs {
			all = append(all, mapPullRequestRef(pr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// wrapAPIError maps a 404 response onto driven.ErrNotFound so callers can
// distinguish "gone upstream" from transient failures.
func wrapAPIError(resp *gh.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return errors.Join(driven.ErrNotFound, err)
	}
	return err
}
