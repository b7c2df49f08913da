package domain

import "time"

// Source identifies one of the external corpora.
type Source string

const (
	// SourceGitHub is the GitHub Issues corpus.
	SourceGitHub Source = "github"

	// SourceStackOverflow is the StackOverflow Q&A corpus.
	SourceStackOverflow Source = "stackoverflow"
)

// AllSources returns every supported source in a stable order.
func AllSources() []Source {
	return []Source{SourceGitHub, SourceStackOverflow}
}

// IsValid reports whether s is a known source.
func (s Source) IsValid() bool {
	return s == SourceGitHub || s == SourceStackOverflow
}

// Label returns a human-readable name for the source.
func (s Source) Label() string {
	switch s {
	case SourceGitHub:
		return "GitHub"
	case SourceStackOverflow:
		return "StackOverflow"
	default:
		return string(s)
	}
}

// SearchBudget is the rate budget key for the source's search API, for
// upstreams that meter search apart from their other endpoints.
func (s Source) SearchBudget() Source {
	return s + "/search"
}

// ParseSource converts a string into a Source.
func ParseSource(v string) (Source, error) {
	s := Source(v)
	if !s.IsValid() {
		return "", ErrUnknownSource
	}
	return s, nil
}

// Document is a normalised issue or question.
// It is owned by the document index; identity is (Source, ID).
type Document struct {
	// ID is unique within its source and stable across refreshes.
	ID string

	// Source is the corpus this document came from.
	Source Source

	// Title is the issue or question title.
	Title string

	// Body is the plain-text body after markup stripping.
	Body string

	// Tags are labels (GitHub) or question tags (StackOverflow).
	Tags []string

	// AcceptedAnswer is the accepted answer body, if any.
	AcceptedAnswer string

	// Score is the vote score (StackOverflow) or reaction count (GitHub).
	Score int

	// Resolved is true for closed-as-completed issues and answered questions.
	Resolved bool

	// Comments are issue comments or question answers, in source order.
	Comments []Comment

	// URL is the public link to the document.
	URL string

	// CreatedAt is when the document was created upstream.
	CreatedAt time.Time

	// UpdatedAt is when the document last changed upstream.
	UpdatedAt time.Time

	// Embedding is the semantic vector, filled by the index.
	Embedding []float32
}

// Comment is a reply attached to a document.
type Comment struct {
	Author     string
	Body       string
	Score      int
	Maintainer bool
	Accepted   bool
	CreatedAt  time.Time
}

// DocKey is the composite identity of a document.
type DocKey struct {
	Source Source
	ID     string
}

// String returns "source:id".
func (k DocKey) String() string {
	return string(k.Source) + ":" + k.ID
}

// Key returns the composite identity of the document.
func (d *Document) Key() DocKey {
	return DocKey{Source: d.Source, ID: d.ID}
}

// HasAcceptedAnswer reports whether the document carries an accepted answer.
func (d *Document) HasAcceptedAnswer() bool {
	return d.AcceptedAnswer != ""
}

// HasMaintainerComment reports whether any comment was written by a maintainer.
func (d *Document) HasMaintainerComment() bool {
	for i := range d.Comments {
		if d.Comments[i].Maintainer {
			return true
		}
	}
	return false
}

// IndexText is the text used for lexical indexing and embedding.
func (d *Document) IndexText() string {
	text := d.Title + "\n" + d.Body
	if d.AcceptedAnswer != "" {
		text += "\n" + d.AcceptedAnswer
	}
	return text
}

// ScoredDocument is an index hit with its raw method score.
type ScoredDocument struct {
	Document Document
	Score    float64
}

// IndexQuery is a lexical query against one source.
type IndexQuery struct {
	// Source restricts the query to one corpus. Empty means all.
	Source Source

	// Keywords are the salient query terms.
	Keywords []string

	// Entities are extracted entities (error codes, libraries, frames).
	Entities []string

	// Limit caps the number of hits.
	Limit int
}

// Terms returns entities followed by keywords, without duplicates.
func (q IndexQuery) Terms() []string {
	seen := make(map[string]bool, len(q.Entities)+len(q.Keywords))
	terms := make([]string, 0, len(q.Entities)+len(q.Keywords))
	for _, group := range [][]string{q.Entities, q.Keywords} {
		for _, t := range group {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			terms = append(terms, t)
		}
	}
	return terms
}
