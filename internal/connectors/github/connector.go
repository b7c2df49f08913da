package github

import (
	"context"
	"fmt"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
	normgh "github.com/Odushhh/tech-support-chatbot/internal/normalisers/github"
)

// Ensure Connector implements the interface.
var _ driven.SourceConnector = (*Connector)(nil)

// Connector fetches issues from GitHub repositories.
type Connector struct {
	config Config
	client *Client
	issues *normgh.IssueNormaliser
	mu     sync.Mutex
	closed bool
}

// New creates a new GitHub connector.
func New(cfg Config, client *Client) *Connector {
	return &Connector{
		config: cfg.withDefaults(),
		client: client,
		issues: normgh.NewIssue(),
	}
}

// Source returns the source this connector reads.
func (c *Connector) Source() domain.Source {
	return domain.SourceGitHub
}

// FetchRecent streams issues updated since the given time from every
// configured repository. Repositories that no longer exist are skipped.
func (c *Connector) FetchRecent(ctx context.Context, since time.Time) (<-chan domain.Document, <-chan error) {
	docsChan := make(chan domain.Document)
	errsChan := make(chan error, 1)

	go func() {
		defer close(docsChan)
		defer close(errsChan)

		if err := c.checkOpen(); err != nil {
			errsChan <- err
			return
		}

		for _, repo := range c.config.Repos {
			select {
			case <-ctx.Done():
				errsChan <- ctx.Err()
				return
			default:
			}

			issues, err := c.client.ListIssues(ctx, repo, since, c.config.MaxIssues)
			if err != nil {
				if IsNotFound(err) {
					logger.Warn("github: repository %s not found, skipping", repo)
					continue
				}
				errsChan <- fmt.Errorf("list issues %s: %w", repo, err)
				return
			}

			if !c.emit(ctx, repo, issues, docsChan, errsChan) {
				return
			}
		}
	}()

	return docsChan, errsChan
}

// FetchByQuery streams issues matching the query terms.
func (c *Connector) FetchByQuery(ctx context.Context, terms []string) (<-chan domain.Document, <-chan error) {
	docsChan := make(chan domain.Document)
	errsChan := make(chan error, 1)

	go func() {
		defer close(docsChan)
		defer close(errsChan)

		if err := c.checkOpen(); err != nil {
			errsChan <- err
			return
		}
		if len(terms) == 0 {
			return
		}

		query := buildSearchQuery(terms, c.config.Repos)
		logger.Debug("github: search %q", query)

		issues, err := c.client.SearchIssues(ctx, query, c.config.LookupLimit)
		if err != nil {
			errsChan <- fmt.Errorf("search issues: %w", err)
			return
		}

		for _, issue := range issues {
			repo, ok := repoFromIssue(issue)
			if !ok {
				logger.Warn("github: cannot resolve repository for issue %s", issue.GetHTMLURL())
				continue
			}
			if !c.emit(ctx, repo, []*gh.Issue{issue}, docsChan, errsChan) {
				return
			}
		}
	}()

	return docsChan, errsChan
}

// emit normalises and sends issues, skipping pull requests.
// It returns false when the stream must stop.
func (c *Connector) emit(
	ctx context.Context, repo Repo, issues []*gh.Issue, docsChan chan<- domain.Document, errsChan chan<- error,
) bool {
	for _, issue := range issues {
		// Skip pull requests (they show up in issues endpoint too).
		if issue.IsPullRequest() {
			continue
		}

		doc, err := c.fetchIssue(ctx, repo, issue)
		if err != nil {
			if ctx.Err() != nil {
				errsChan <- ctx.Err()
				return false
			}
			logger.Warn("github: skipping issue %s#%d: %v", repo, issue.GetNumber(), err)
			continue
		}

		select {
		case <-ctx.Done():
			errsChan <- ctx.Err()
			return false
		case docsChan <- *doc:
		}
	}
	return true
}

func (c *Connector) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectorClosed
	}
	return nil
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
