package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// Ensure InteractionStore implements the interface.
var _ driven.InteractionStore = (*InteractionStore)(nil)

const defaultTopicLimit = 10

// InteractionStore is an in-memory interaction log.
type InteractionStore struct {
	mu           sync.RWMutex
	interactions map[string]domain.Interaction
	topics       map[string]int
	feedback     []domain.Feedback
}

// NewInteractionStore creates an empty interaction log.
func NewInteractionStore() *InteractionStore {
	return &InteractionStore{
		interactions: make(map[string]domain.Interaction),
		topics:       make(map[string]int),
	}
}

// RecordInteraction appends an interaction.
func (s *InteractionStore) RecordInteraction(_ context.Context, in domain.Interaction) error {
	if in.ID == "" {
		return fmt.Errorf("%w: interaction id is empty", domain.ErrInvalidInput)
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	in.CitedDocuments = append([]string(nil), in.CitedDocuments...)
	in.Topics = dedupe(in.Topics)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.interactions[in.ID]; exists {
		return fmt.Errorf("%w: interaction %q already recorded", domain.ErrInvalidInput, in.ID)
	}
	s.interactions[in.ID] = in
	for _, topic := range in.Topics {
		s.topics[topic]++
	}
	return nil
}

// GetInteraction returns one interaction or domain.ErrNotFound.
func (s *InteractionStore) GetInteraction(_ context.Context, id string) (*domain.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.interactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &in, nil
}

// RecordFeedback stores feedback for an existing interaction.
func (s *InteractionStore) RecordFeedback(_ context.Context, fb domain.Feedback) error {
	if fb.ID == "" || fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("%w: feedback needs an id and a rating from 1 to 5", domain.ErrInvalidInput)
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.interactions[fb.InteractionID]; !ok {
		return fmt.Errorf("interaction %q: %w", fb.InteractionID, domain.ErrNotFound)
	}
	s.feedback = append(s.feedback, fb)
	return nil
}

// Stats aggregates the interaction log.
func (s *InteractionStore) Stats(_ context.Context) (domain.InteractionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.InteractionStats{ByIntent: make(map[domain.Intent]int)}
	var confidence float64
	for _, in := range s.interactions {
		stats.TotalQueries++
		confidence += in.Confidence
		stats.ByIntent[in.Intent]++
		if in.FallbackUsed {
			stats.FallbackCount++
		}
		if in.Cached {
			stats.CachedCount++
		}
	}
	if stats.TotalQueries > 0 {
		stats.AverageConfidence = confidence / float64(stats.TotalQueries)
	}

	var rating int
	for _, fb := range s.feedback {
		rating += fb.Rating
	}
	stats.FeedbackCount = len(s.feedback)
	if stats.FeedbackCount > 0 {
		stats.AverageRating = float64(rating) / float64(stats.FeedbackCount)
	}
	return stats, nil
}

// PopularTopics returns the most frequent topics, ties by name.
func (s *InteractionStore) PopularTopics(_ context.Context, limit int) ([]domain.TopicCount, error) {
	if limit <= 0 {
		limit = defaultTopicLimit
	}
	s.mu.RLock()
	counts := make([]domain.TopicCount, 0, len(s.topics))
	for topic, n := range s.topics {
		counts = append(counts, domain.TopicCount{Topic: topic, Count: n})
	}
	s.mu.RUnlock()

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Topic < counts[j].Topic
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
