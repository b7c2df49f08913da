package driven

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// InteractionStore persists the interaction log and feedback.
type InteractionStore interface {
	// RecordInteraction appends an interaction.
	RecordInteraction(ctx context.Context, interaction domain.Interaction) error

	// GetInteraction returns one interaction or domain.ErrNotFound.
	GetInteraction(ctx context.Context, id string) (*domain.Interaction, error)

	// RecordFeedback stores feedback for an existing interaction.
	RecordFeedback(ctx context.Context, feedback domain.Feedback) error

	// Stats aggregates the interaction log.
	Stats(ctx context.Context) (domain.InteractionStats, error)

	// PopularTopics returns the most frequent topics, most frequent first.
	PopularTopics(ctx context.Context, limit int) ([]domain.TopicCount, error)
}
