package driven

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// VectorIndex provides nearest-neighbour search over document embeddings.
// Each source is kept in its own partition.
type VectorIndex interface {
	// Add inserts or replaces the vector for a document.
	Add(ctx context.Context, key domain.DocKey, embedding []float32) error

	// Delete removes a vector from the index.
	Delete(ctx context.Context, key domain.DocKey) error

	// Search finds the k nearest neighbours within a source.
	Search(ctx context.Context, source domain.Source, query []float32, k int) ([]VectorHit, error)

	// Count returns how many vectors a source holds.
	Count(source domain.Source) int
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Key is the matched document.
	Key domain.DocKey

	// Similarity is the cosine similarity score.
	Similarity float64
}
