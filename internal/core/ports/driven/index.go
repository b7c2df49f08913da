package driven

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// DocumentIndex is the searchable document store.
// Reads must not block on a refresh in progress; writes are atomic per document.
type DocumentIndex interface {
	// Upsert inserts or refreshes a document keyed by (Source, ID).
	// Re-ingesting an unchanged document is a no-op.
	Upsert(ctx context.Context, doc domain.Document) error

	// Get returns one document or domain.ErrNotFound.
	Get(ctx context.Context, key domain.DocKey) (*domain.Document, error)

	// Search runs a lexical (BM25) query. Scores are positive, higher is better.
	Search(ctx context.Context, query domain.IndexQuery) ([]domain.ScoredDocument, error)

	// EmbeddingSearch returns nearest neighbours of vector within one source.
	// Scores are cosine similarities.
	EmbeddingSearch(ctx context.Context, source domain.Source, vector []float32, limit int) ([]domain.ScoredDocument, error)

	// Count returns the number of documents stored for a source.
	Count(ctx context.Context, source domain.Source) (int, error)

	// Close releases resources.
	Close() error
}
