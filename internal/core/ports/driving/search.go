package driving

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// SearchOptions configures a direct index search.
type SearchOptions struct {
	// Source restricts results to one corpus. Empty means all.
	Source domain.Source

	// Limit is the maximum number of results.
	Limit int
}

// SearchService exposes plain lexical search over the index.
type SearchService interface {
	// Search returns documents matching query, best first.
	Search(ctx context.Context, query string, opts SearchOptions) ([]domain.ScoredDocument, error)
}
