package driven

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// SyncStateStore persists refresh watermarks.
type SyncStateStore interface {
	// Save stores or updates sync state.
	Save(ctx context.Context, state domain.SyncState) error

	// Get retrieves sync state for a source.
	// Returns nil and no error if the source has never been refreshed.
	Get(ctx context.Context, source domain.Source) (*domain.SyncState, error)

	// List returns the state of every refreshed source.
	List(ctx context.Context) ([]domain.SyncState, error)
}
