package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/Odushhh/tech-support-chatbot/internal/connectors/retry"
	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// Client wraps the go-github client with budget accounting and retries.
type Client struct {
	gh       *gh.Client
	governor driven.RateGovernor
	policy   retry.Policy
}

// NewClient creates a GitHub API client.
// governor may be nil, in which case requests are not budgeted.
func NewClient(ctx context.Context, cfg Config, governor driven.RateGovernor, policy retry.Policy) (*Client, error) {
	cfg = cfg.withDefaults()

	var hc *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.Token},
		)
		hc = oauth2.NewClient(ctx, ts)
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = cfg.Timeout

	client := gh.NewClient(hc)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("github: parse base url: %w", err)
		}
		client.BaseURL = u
	}

	return &Client{
		gh:       client,
		governor: governor,
		policy:   policy,
	}, nil
}

// ListIssues lists issues updated since the given time, oldest first.
// Pull requests are included; callers filter them. At most max issues
// are returned.
func (c *Client) ListIssues(ctx context.Context, repo Repo, since time.Time, max int) ([]*gh.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "asc",
		ListOptions: gh.ListOptions{
			PerPage: min(100, max),
		},
	}
	if !since.IsZero() {
		opts.Since = since
	}

	var allIssues []*gh.Issue
	for {
		var issues []*gh.Issue
		var resp *gh.Response
		err := c.call(ctx, "list issues "+repo.String(), domain.SourceGitHub, func() (*gh.Response, error) {
			var err error
			issues, resp, err = c.gh.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
			return resp, err
		})
		if err != nil {
			return allIssues, err
		}

		allIssues = append(allIssues, issues...)
		if len(allIssues) >= max {
			return allIssues[:max], nil
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return allIssues, nil
}

// SearchIssues runs an issue search and returns up to max results.
func (c *Client) SearchIssues(ctx context.Context, query string, max int) ([]*gh.Issue, error) {
	opts := &gh.SearchOptions{
		ListOptions: gh.ListOptions{PerPage: min(100, max)},
	}

	var result *gh.IssuesSearchResult
	err := c.call(ctx, "search issues", domain.SourceGitHub.SearchBudget(), func() (*gh.Response, error) {
		var (
			resp *gh.Response
			err  error
		)
		result, resp, err = c.gh.Search.Issues(ctx, query, opts)
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	issues := result.Issues
	if len(issues) > max {
		issues = issues[:max]
	}
	return issues, nil
}

// ListComments lists up to max comments on an issue, oldest first.
func (c *Client) ListComments(ctx context.Context, repo Repo, number, max int) ([]*gh.IssueComment, error) {
	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: min(100, max)},
	}

	var allComments []*gh.IssueComment
	for {
		var comments []*gh.IssueComment
		var resp *gh.Response
		err := c.call(ctx, fmt.Sprintf("list comments %s#%d", repo, number), domain.SourceGitHub, func() (*gh.Response, error) {
			var err error
			comments, resp, err = c.gh.Issues.ListComments(ctx, repo.Owner, repo.Name, number, opts)
			return resp, err
		})
		if err != nil {
			return allComments, err
		}

		allComments = append(allComments, comments...)
		if len(allComments) >= max {
			return allComments[:max], nil
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allComments, nil
}

// call takes a slot from the budgetKey budget, runs fn under the retry policy
// and feeds the response budget back to the governor.
func (c *Client) call(ctx context.Context, operation string, budgetKey domain.Source, fn func() (*gh.Response, error)) error {
	_, err := retry.Do(ctx, c.policy, "github "+operation, func() (struct{}, error) {
		if c.governor != nil {
			if err := c.governor.Acquire(ctx, budgetKey); err != nil {
				return struct{}{}, retry.Permanent(err)
			}
		}

		resp, err := fn()
		c.updateRateLimitFromResponse(resp)
		if err != nil {
			return struct{}{}, c.wrapError(err, resp, operation)
		}
		return struct{}{}, nil
	})
	return err
}

// updateRateLimitFromResponse reports the server-side budget to the governor.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if c.governor == nil || resp == nil || resp.Response == nil {
		return
	}
	b, ok := parseBudget(resp.Response)
	if !ok {
		return
	}
	if key, tracked := b.governorKey(); tracked {
		c.governor.Observe(key, b.Remaining, b.ResetAt)
	}
}

// wrapError converts go-github errors to our error types and marks the
// ones that are not worth retrying.
func (c *Client) wrapError(err error, resp *gh.Response, operation string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &RateLimitError{
			ResetAt:   rateLimitErr.Rate.Reset.Time,
			Remaining: rateLimitErr.Rate.Remaining,
			Limit:     rateLimitErr.Rate.Limit,
		}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		rl := &RateLimitError{ResetAt: time.Now()}
		if d := abuseErr.GetRetryAfter(); d > 0 {
			rl.ResetAt = rl.ResetAt.Add(d)
		}
		return rl
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		if resp != nil {
			if rl := rateLimitFromResponse(resp.Response); rl != nil {
				return rl
			}
		}
		apiErr := &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		if apiErr.Temporary() {
			return apiErr
		}
		return retry.Permanent(apiErr)
	}

	return fmt.Errorf("%s: %w", operation, err)
}
