package driven

import (
	"context"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// SourceConnector fetches documents from one external corpus.
// Connectors never write to the index; callers upsert what they receive.
type SourceConnector interface {
	// Source returns the corpus this connector reads.
	Source() domain.Source

	// FetchRecent streams documents updated after since.
	// A zero since fetches everything the connector is configured for.
	// The error channel receives at most one error. Both channels are closed when the stream ends.
	FetchRecent(ctx context.Context, since time.Time) (<-chan domain.Document, <-chan error)

	// FetchByQuery streams documents matching the search terms.
	FetchByQuery(ctx context.Context, terms []string) (<-chan domain.Document, <-chan error)

	// Close releases resources. Subsequent fetches fail with domain.ErrConnectorClosed.
	Close() error
}
