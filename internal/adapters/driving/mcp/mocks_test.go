package mcp

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
)

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer *domain.Answer
	err    error
	asked  []string
}

func (m *mockAnswerService) Ask(_ context.Context, text string) (*domain.Answer, error) {
	m.asked = append(m.asked, text)
	return m.answer, m.err
}

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.ScoredDocument
	err     error
	opts    driving.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts driving.SearchOptions,
) ([]domain.ScoredDocument, error) {
	m.opts = opts
	return m.results, m.err
}

// mockFeedbackService is a mock implementation of driving.FeedbackService.
type mockFeedbackService struct {
	stats  *domain.UsageStats
	topics []domain.TopicCount
	err    error
	limit  int
}

func (m *mockFeedbackService) Submit(_ context.Context, _ string, _ int, _ string) (*domain.Feedback, error) {
	return nil, m.err
}

func (m *mockFeedbackService) Stats(_ context.Context) (*domain.UsageStats, error) {
	return m.stats, m.err
}

func (m *mockFeedbackService) PopularTopics(_ context.Context, limit int) ([]domain.TopicCount, error) {
	m.limit = limit
	return m.topics, m.err
}
