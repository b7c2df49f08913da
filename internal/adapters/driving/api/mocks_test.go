package api

import (
	"context"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
)

// mockAnswerService implements driving.AnswerService for testing.
type mockAnswerService struct {
	answer  *domain.Answer
	err     error
	lastArg string
}

func (m *mockAnswerService) Ask(_ context.Context, text string) (*domain.Answer, error) {
	m.lastArg = text
	return m.answer, m.err
}

// mockSearchService implements driving.SearchService for testing.
type mockSearchService struct {
	results  []domain.ScoredDocument
	err      error
	lastOpts driving.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, _ string, opts driving.SearchOptions) ([]domain.ScoredDocument, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockFeedbackService implements driving.FeedbackService for testing.
type mockFeedbackService struct {
	feedback  *domain.Feedback
	submitErr error
	stats     *domain.UsageStats
	topics    []domain.TopicCount
	lastLimit int
}

func (m *mockFeedbackService) Submit(_ context.Context, id string, rating int, comment string) (*domain.Feedback, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	if m.feedback != nil {
		return m.feedback, nil
	}
	return &domain.Feedback{ID: "fb-1", InteractionID: id, Rating: rating, Comment: comment}, nil
}

func (m *mockFeedbackService) Stats(context.Context) (*domain.UsageStats, error) {
	return m.stats, nil
}

func (m *mockFeedbackService) PopularTopics(_ context.Context, limit int) ([]domain.TopicCount, error) {
	m.lastLimit = limit
	return m.topics, nil
}

// mockRefreshService implements driving.RefreshService for testing.
type mockRefreshService struct {
	sources []domain.Source
	err     error
}

func (m *mockRefreshService) RefreshSource(_ context.Context, source domain.Source) (domain.RefreshResult, error) {
	for _, s := range m.sources {
		if s == source {
			return domain.RefreshResult{Source: source, Upserted: 4, Watermark: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Err: m.err}, m.err
		}
	}
	return domain.RefreshResult{Source: source}, domain.ErrUnknownSource
}

func (m *mockRefreshService) RefreshAll(ctx context.Context) ([]domain.RefreshResult, error) {
	var results []domain.RefreshResult
	for _, s := range m.sources {
		r, _ := m.RefreshSource(ctx, s)
		results = append(results, r)
	}
	return results, m.err
}

func (m *mockRefreshService) Sources() []domain.Source { return m.sources }

// Ensure mocks implement interfaces
var (
	_ driving.AnswerService   = (*mockAnswerService)(nil)
	_ driving.SearchService   = (*mockSearchService)(nil)
	_ driving.FeedbackService = (*mockFeedbackService)(nil)
	_ driving.RefreshService  = (*mockRefreshService)(nil)
)
