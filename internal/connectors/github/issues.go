package github

import (
	"context"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
	normgh "github.com/Odushhh/tech-support-chatbot/internal/normalisers/github"
)

// maxQueryTerms caps the terms sent to the search API; GitHub ANDs them.
const maxQueryTerms = 4

// fetchIssue builds a document from an issue, fetching its comments.
// A comment fetch failure is logged and the issue is kept without comments.
func (c *Connector) fetchIssue(ctx context.Context, repo Repo, issue *gh.Issue) (*domain.Document, error) {
	var comments []*gh.IssueComment
	if issue.GetComments() > 0 {
		var err error
		comments, err = c.client.ListComments(ctx, repo, issue.GetNumber(), c.config.MaxComments)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("github: comments for %s#%d: %v", repo, issue.GetNumber(), err)
			comments = nil
		}
	}

	return c.issues.Normalise(buildIssueContent(repo, issue, comments))
}

// buildIssueContent creates the IssueContent structure.
func buildIssueContent(repo Repo, issue *gh.Issue, comments []*gh.IssueComment) *normgh.IssueContent {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		if name := l.GetName(); name != "" {
			labels = append(labels, name)
		}
	}

	commentContents := make([]normgh.CommentContent, len(comments))
	for i, c := range comments {
		commentContents[i] = normgh.CommentContent{
			Author:            c.GetUser().GetLogin(),
			AuthorAssociation: c.GetAuthorAssociation(),
			Body:              c.GetBody(),
			Reactions:         c.GetReactions().GetTotalCount(),
			CreatedAt:         c.GetCreatedAt().Time,
		}
	}

	return &normgh.IssueContent{
		Owner:       repo.Owner,
		Repo:        repo.Name,
		Number:      issue.GetNumber(),
		Title:       issue.GetTitle(),
		Body:        issue.GetBody(),
		State:       issue.GetState(),
		StateReason: issue.GetStateReason(),
		Author:      issue.GetUser().GetLogin(),
		URL:         issue.GetHTMLURL(),
		Labels:      labels,
		Reactions:   issue.GetReactions().GetTotalCount(),
		CreatedAt:   issue.GetCreatedAt().Time,
		UpdatedAt:   issue.GetUpdatedAt().Time,
		Comments:    commentContents,
	}
}

// repoFromIssue recovers the repository of a search hit, which carries
// repository_url rather than an embedded repository.
func repoFromIssue(issue *gh.Issue) (Repo, bool) {
	if r := issue.GetRepository(); r != nil && r.GetOwner().GetLogin() != "" {
		return Repo{Owner: r.GetOwner().GetLogin(), Name: r.GetName()}, true
	}

	if raw := issue.GetRepositoryURL(); raw != "" {
		if u, err := url.Parse(raw); err == nil {
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if n := len(parts); n >= 3 && parts[n-3] == "repos" {
				return Repo{Owner: parts[n-2], Name: parts[n-1]}, true
			}
		}
	}

	if raw := issue.GetHTMLURL(); raw != "" {
		if u, err := url.Parse(raw); err == nil {
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) >= 4 && parts[2] == "issues" {
				return Repo{Owner: parts[0], Name: parts[1]}, true
			}
		}
	}

	return Repo{}, false
}

// buildSearchQuery turns query terms into a GitHub issue search string
// restricted to the configured repositories.
func buildSearchQuery(terms []string, repos []Repo) string {
	parts := make([]string, 0, maxQueryTerms+len(repos)+1)
	for _, t := range terms {
		if len(parts) == maxQueryTerms {
			break
		}
		t = strings.TrimSpace(strings.ReplaceAll(t, `"`, ""))
		if t == "" {
			continue
		}
		if strings.ContainsAny(t, " :") {
			t = `"` + t + `"`
		}
		parts = append(parts, t)
	}
	parts = append(parts, "is:issue")
	for _, r := range repos {
		parts = append(parts, "repo:"+r.String())
	}
	return strings.Join(parts, " ")
}
