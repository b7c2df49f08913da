package driving

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// FeedbackService records ratings and reports usage.
type FeedbackService interface {
	// Submit stores feedback for a previous answer.
	Submit(ctx context.Context, interactionID string, rating int, comment string) (*domain.Feedback, error)

	// Stats reports usage, index and budget statistics.
	Stats(ctx context.Context) (*domain.UsageStats, error)

	// PopularTopics returns the most asked-about topics.
	PopularTopics(ctx context.Context, limit int) ([]domain.TopicCount, error)
}
