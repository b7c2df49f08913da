package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// Ensure FeedbackService implements the interface.
var _ driving.FeedbackService = (*FeedbackService)(nil)

// maxCommentLength caps stored feedback comments, in runes.
const maxCommentLength = 2000

// FeedbackService records ratings and reports usage statistics.
type FeedbackService struct {
	interactions driven.InteractionStore
	index        driven.DocumentIndex
	syncStore    driven.SyncStateStore
	governor     driven.RateGovernor
}

// NewFeedbackService creates the service. interactions and governor may be nil.
func NewFeedbackService(
	interactions driven.InteractionStore,
	index driven.DocumentIndex,
	syncStore driven.SyncStateStore,
	governor driven.RateGovernor,
) *FeedbackService {
	return &FeedbackService{
		interactions: interactions,
		index:        index,
		syncStore:    syncStore,
		governor:     governor,
	}
}

// Submit stores a 1 to 5 rating for a previous answer.
func (s *FeedbackService) Submit(ctx context.Context, interactionID string, rating int, comment string) (*domain.Feedback, error) {
	interactionID = strings.TrimSpace(interactionID)
	if interactionID == "" {
		return nil, fmt.Errorf("%w: query id is required", domain.ErrInvalidInput)
	}
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5, got %d", domain.ErrInvalidInput, rating)
	}
	if s.interactions == nil {
		return nil, fmt.Errorf("interaction %q: %w", interactionID, domain.ErrNotFound)
	}

	fb := domain.Feedback{
		ID:            uuid.NewString(),
		InteractionID: interactionID,
		Rating:        rating,
		Comment:       truncate(strings.TrimSpace(comment), maxCommentLength),
		CreatedAt:     time.Now(),
	}
	if err := s.interactions.RecordFeedback(ctx, fb); err != nil {
		return nil, err
	}
	logger.Info("Feedback %d/5 for %s", rating, interactionID)
	return &fb, nil
}

// Stats reports interaction, index, refresh and budget statistics.
func (s *FeedbackService) Stats(ctx context.Context) (*domain.UsageStats, error) {
	stats := &domain.UsageStats{
		Interactions: domain.InteractionStats{ByIntent: map[domain.Intent]int{}},
		Documents:    make(map[domain.Source]int, 2),
		Sync:         []domain.SyncState{},
		Budgets:      []domain.BudgetStatus{},
	}

	if s.interactions != nil {
		is, err := s.interactions.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("interaction stats: %w", err)
		}
		stats.Interactions = is
	}

	for _, source := range domain.AllSources() {
		n, err := s.index.Count(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", source, err)
		}
		stats.Documents[source] = n
		if s.governor != nil {
			stats.Budgets = append(stats.Budgets, s.governor.Budget(source))
		}
	}

	if s.syncStore != nil {
		states, err := s.syncStore.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("sync state: %w", err)
		}
		stats.Sync = append(stats.Sync, states...)
	}
	return stats, nil
}

// PopularTopics returns the most asked-about topics.
func (s *FeedbackService) PopularTopics(ctx context.Context, limit int) ([]domain.TopicCount, error) {
	if s.interactions == nil {
		return []domain.TopicCount{}, nil
	}
	topics, err := s.interactions.PopularTopics(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("popular topics: %w", err)
	}
	if topics == nil {
		topics = []domain.TopicCount{}
	}
	return topics, nil
}
