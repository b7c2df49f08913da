package stackoverflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
	normso "github.com/Odushhh/tech-support-chatbot/internal/normalisers/stackoverflow"
)

// Ensure Connector implements the interface.
var _ driven.SourceConnector = (*Connector)(nil)

// Connector fetches questions from StackOverflow.
type Connector struct {
	config    Config
	client    *Client
	questions *normso.QuestionNormaliser
	mu        sync.Mutex
	closed    bool
}

// New creates a new StackOverflow connector.
func New(cfg Config, client *Client) *Connector {
	return &Connector{
		config:    cfg.withDefaults(),
		client:    client,
		questions: normso.NewQuestion(),
	}
}

// Source returns the source this connector reads.
func (c *Connector) Source() domain.Source {
	return domain.SourceStackOverflow
}

// FetchRecent streams questions active since the given time, once per
// configured tag. A question carrying several tags may be sent twice.
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

		tags := c.config.Tags
		if len(tags) == 0 {
			tags = []string{""}
		}

		for _, tag := range tags {
			qs, err := c.client.ActiveQuestions(ctx, tag, since, c.config.MaxQuestions)
			if err != nil {
				errsChan <- fmt.Errorf("questions tagged %q: %w", tag, err)
				return
			}
			if err := c.emit(ctx, qs, docsChan); err != nil {
				errsChan <- err
				return
			}
		}
	}()

	return docsChan, errsChan
}

// FetchByQuery streams questions matching the query terms.
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

		q := buildQuery(terms)
		if q == "" {
			return
		}
		logger.Debug("stackoverflow: search %q", q)

		qs, err := c.client.Search(ctx, q, c.config.LookupLimit)
		if err != nil {
			errsChan <- fmt.Errorf("search: %w", err)
			return
		}
		if err := c.emit(ctx, qs, docsChan); err != nil {
			errsChan <- err
		}
	}()

	return docsChan, errsChan
}

// emit attaches answers to questions, normalises and sends them.
func (c *Connector) emit(ctx context.Context, qs []question, docsChan chan<- domain.Document) error {
	if len(qs) == 0 {
		return nil
	}

	var ids []int
	for _, q := range qs {
		if q.AnswerCount > 0 {
			ids = append(ids, q.QuestionID)
		}
	}

	answers := map[int][]answer{}
	if len(ids) > 0 {
		var err error
		answers, err = c.client.Answers(ctx, ids)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("stackoverflow: answers for %d questions: %v", len(ids), err)
		}
	}

	for _, q := range qs {
		doc, err := c.questions.Normalise(buildQuestionContent(q, answers[q.QuestionID]))
		if err != nil {
			logger.Warn("stackoverflow: skipping question %d: %v", q.QuestionID, err)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case docsChan <- *doc:
		}
	}
	return nil
}

func buildQuestionContent(q question, answers []answer) *normso.QuestionContent {
	content := &normso.QuestionContent{
		QuestionID:       q.QuestionID,
		Title:            q.Title,
		Body:             q.Body,
		Tags:             q.Tags,
		Score:            q.Score,
		IsAnswered:       q.IsAnswered,
		AcceptedAnswerID: q.AcceptedAnswerID,
		Link:             q.Link,
		CreatedAt:        unixTime(q.CreationDate),
		LastActivityAt:   unixTime(q.LastActivityDate),
	}
	for _, a := range answers {
		content.Answers = append(content.Answers, normso.AnswerContent{
			AnswerID:   a.AnswerID,
			Author:     a.Owner.DisplayName,
			Body:       a.Body,
			Score:      a.Score,
			IsAccepted: a.IsAccepted,
			CreatedAt:  unixTime(a.CreationDate),
		})
	}
	return content
}

func buildQuery(terms []string) string {
	parts := make([]string, 0, maxQueryTerms)
	for _, t := range terms {
		if len(parts) == maxQueryTerms {
			break
		}
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
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
	if c.client != nil {
		c.client.http.CloseIdleConnections()
	}
	return nil
}
