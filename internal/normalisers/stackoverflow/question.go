package stackoverflow

import (
	"html"
	"strconv"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	htmlnorm "github.com/Odushhh/tech-support-chatbot/internal/normalisers/html"
)

// QuestionContent is the connector-neutral shape of a question.
type QuestionContent struct {
	QuestionID       int
	Title            string
	Body             string
	Tags             []string
	Score            int
	IsAnswered       bool
	AcceptedAnswerID int
	Link             string
	CreatedAt        time.Time
	LastActivityAt   time.Time
	Answers          []AnswerContent
}

// AnswerContent is one answer to a question.
type AnswerContent struct {
	AnswerID   int
	Author     string
	Body       string
	Score      int
	IsAccepted bool
	CreatedAt  time.Time
}

// QuestionNormaliser builds documents from questions.
type QuestionNormaliser struct {
	markup driven.Normaliser
}

// NewQuestion creates a new StackOverflow question normaliser.
func NewQuestion() *QuestionNormaliser {
	return &QuestionNormaliser{markup: htmlnorm.New()}
}

// Normalise converts a question and its answers to a document.
// The accepted answer body is copied to AcceptedAnswer; every answer,
// accepted or not, is kept as a comment.
func (n *QuestionNormaliser) Normalise(content *QuestionContent) (*domain.Document, error) {
	if content == nil || content.QuestionID <= 0 {
		return nil, domain.ErrInvalidInput
	}

	doc := &domain.Document{
		ID:        strconv.Itoa(content.QuestionID),
		Source:    domain.SourceStackOverflow,
		Title:     html.UnescapeString(content.Title),
		Body:      n.markup.Normalise(content.Body).Text,
		Tags:      append([]string(nil), content.Tags...),
		Score:     content.Score,
		URL:       content.Link,
		CreatedAt: content.CreatedAt,
		UpdatedAt: content.LastActivityAt,
	}

	for _, a := range content.Answers {
		body := n.markup.Normalise(a.Body).Text
		if body == "" {
			continue
		}
		accepted := a.IsAccepted || (content.AcceptedAnswerID != 0 && a.AnswerID == content.AcceptedAnswerID)
		if accepted {
			doc.AcceptedAnswer = body
		}
		doc.Comments = append(doc.Comments, domain.Comment{
			Author:    html.UnescapeString(a.Author),
			Body:      body,
			Score:     a.Score,
			Accepted:  accepted,
			CreatedAt: a.CreatedAt,
		})
	}

	doc.Resolved = doc.AcceptedAnswer != "" || content.IsAnswered
	return doc, nil
}
