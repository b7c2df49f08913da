package driving

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// RefreshService pulls recent documents from the sources into the index.
type RefreshService interface {
	// RefreshSource refreshes one source from its watermark.
	RefreshSource(ctx context.Context, source domain.Source) (domain.RefreshResult, error)

	// RefreshAll refreshes every configured source independently.
	RefreshAll(ctx context.Context) ([]domain.RefreshResult, error)

	// Sources lists the configured sources.
	Sources() []domain.Source
}
