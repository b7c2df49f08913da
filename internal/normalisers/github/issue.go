package github

import (
	"fmt"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/normalisers/markdown"
)

// IssueContent is the connector-neutral shape of an issue.
type IssueContent struct {
	Owner       string
	Repo        string
	Number      int
	Title       string
	Body        string
	State       string
	StateReason string
	Author      string
	URL         string
	Labels      []string
	Reactions   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Comments    []CommentContent
}

// CommentContent represents a comment on an issue.
type CommentContent struct {
	Author            string
	AuthorAssociation string
	Body              string
	Reactions         int
	CreatedAt         time.Time
}

// maintainerAssociations are the author associations treated as maintainers.
var maintainerAssociations = map[string]bool{
	"OWNER":        true,
	"MEMBER":       true,
	"COLLABORATOR": true,
}

// IssueNormaliser builds documents from issues.
type IssueNormaliser struct {
	markup driven.Normaliser
}

// NewIssue creates a new GitHub issue normaliser.
func NewIssue() *IssueNormaliser {
	return &IssueNormaliser{markup: markdown.New()}
}

// IssueID returns the stable document id "owner/repo#number".
func IssueID(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, number)
}

// Normalise converts an issue to a document.
func (n *IssueNormaliser) Normalise(content *IssueContent) (*domain.Document, error) {
	if content == nil || content.Number <= 0 || content.Owner == "" || content.Repo == "" {
		return nil, domain.ErrInvalidInput
	}

	doc := &domain.Document{
		ID:        IssueID(content.Owner, content.Repo, content.Number),
		Source:    domain.SourceGitHub,
		Title:     content.Title,
		Body:      n.markup.Normalise(content.Body).Text,
		Tags:      append([]string(nil), content.Labels...),
		Score:     content.Reactions,
		Resolved:  IsResolved(content.State, content.StateReason),
		URL:       content.URL,
		CreatedAt: content.CreatedAt,
		UpdatedAt: content.UpdatedAt,
	}

	for _, c := range content.Comments {
		body := n.markup.Normalise(c.Body).Text
		if body == "" {
			continue
		}
		doc.Comments = append(doc.Comments, domain.Comment{
			Author:     c.Author,
			Body:       body,
			Score:      c.Reactions,
			Maintainer: maintainerAssociations[c.AuthorAssociation],
			CreatedAt:  c.CreatedAt,
		})
	}

	return doc, nil
}

// IsResolved reports whether an issue was closed as completed.
// Issues closed as "not_planned" or "duplicate" are not resolved.
func IsResolved(state, stateReason string) bool {
	if state != "closed" {
		return false
	}
	return stateReason == "" || stateReason == "completed"
}
