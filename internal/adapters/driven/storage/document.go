package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// Validate checks the identity of a document before it is stored.
func Validate(doc *domain.Document) error {
	if !doc.Source.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSource, doc.Source)
	}
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("%w: document id is empty", domain.ErrInvalidInput)
	}
	return nil
}

// Merge applies an incoming refresh to the stored copy of a document.
//
// CreatedAt is kept from the first ingest. A payload older than the stored
// copy only refreshes the score; anything else replaces the content.
// The embedding is carried over and cleared by the caller when the
// indexed text changes.
func Merge(stored *domain.Document, incoming domain.Document) domain.Document {
	if stored == nil {
		return incoming
	}
	if incoming.UpdatedAt.Before(stored.UpdatedAt) {
		merged := *stored
		merged.Score = incoming.Score
		return merged
	}
	merged := incoming
	if !stored.CreatedAt.IsZero() {
		merged.CreatedAt = stored.CreatedAt
	}
	if len(merged.Embedding) == 0 && stored.IndexText() == merged.IndexText() {
		merged.Embedding = stored.Embedding
	}
	return merged
}

// fingerprintView is everything observable about a document except its vector.
type fingerprintView struct {
	Title          string
	Body           string
	Tags           []string
	AcceptedAnswer string
	Score          int
	Resolved       bool
	Comments       []domain.Comment
	URL            string
	CreatedAt      int64
	UpdatedAt      int64
}

// Fingerprint hashes the stored fields of a document.
// Two documents with the same key and fingerprint are indistinguishable to readers.
func Fingerprint(doc *domain.Document) string {
	view := fingerprintView{
		Title:          doc.Title,
		Body:           doc.Body,
		Tags:           doc.Tags,
		AcceptedAnswer: doc.AcceptedAnswer,
		Score:          doc.Score,
		Resolved:       doc.Resolved,
		Comments:       append([]domain.Comment(nil), doc.Comments...),
		URL:            doc.URL,
		CreatedAt:      doc.CreatedAt.UnixNano(),
		UpdatedAt:      doc.UpdatedAt.UnixNano(),
	}
	if len(view.Tags) == 0 {
		view.Tags = nil
	}
	if len(view.Comments) == 0 {
		view.Comments = nil
	}
	for i := range view.Comments {
		view.Comments[i].CreatedAt = view.Comments[i].CreatedAt.UTC()
	}
	b, _ := json.Marshal(view)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// EnsureEmbedding computes the vector of a document that has none.
func EnsureEmbedding(ctx context.Context, embedder driven.Embedder, doc *domain.Document) error {
	if len(doc.Embedding) > 0 || embedder == nil {
		return nil
	}
	vecs, err := embedder.Embed(ctx, []string{doc.IndexText()})
	if err != nil {
		return fmt.Errorf("embedding %s: %w", doc.Key(), err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("embedding %s: got %d vectors", doc.Key(), len(vecs))
	}
	doc.Embedding = vecs[0]
	return nil
}
