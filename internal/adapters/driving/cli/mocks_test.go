package cli

import (
	"bytes"
	"context"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
)

type mockAnswerService struct {
	answer *domain.Answer
	err    error
	asked  string
}

func (m *mockAnswerService) Ask(_ context.Context, text string) (*domain.Answer, error) {
	m.asked = text
	return m.answer, m.err
}

type mockSearchService struct {
	results []domain.ScoredDocument
	err     error
	query   string
	opts    driving.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts driving.SearchOptions) ([]domain.ScoredDocument, error) {
	m.query = query
	m.opts = opts
	return m.results, m.err
}

type mockFeedbackService struct {
	stats  *domain.UsageStats
	topics []domain.TopicCount
	err    error
}

func (m *mockFeedbackService) Submit(_ context.Context, _ string, _ int, _ string) (*domain.Feedback, error) {
	return nil, m.err
}

func (m *mockFeedbackService) Stats(_ context.Context) (*domain.UsageStats, error) {
	return m.stats, m.err
}

func (m *mockFeedbackService) PopularTopics(_ context.Context, _ int) ([]domain.TopicCount, error) {
	return m.topics, m.err
}

type mockRefreshService struct {
	results   []domain.RefreshResult
	err       error
	refreshed []domain.Source
}

func (m *mockRefreshService) RefreshSource(_ context.Context, source domain.Source) (domain.RefreshResult, error) {
	m.refreshed = append(m.refreshed, source)
	for _, r := range m.results {
		if r.Source == source {
			return r, r.Err
		}
	}
	return domain.RefreshResult{Source: source}, m.err
}

func (m *mockRefreshService) RefreshAll(_ context.Context) ([]domain.RefreshResult, error) {
	m.refreshed = append(m.refreshed, domain.AllSources()...)
	return m.results, m.err
}

func (m *mockRefreshService) Sources() []domain.Source {
	return domain.AllSources()
}

type mockScheduler struct {
	started chan struct{}
	stopped bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	close(m.started)
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.stopped = true
	return nil
}

// testServices bundles the mocks installed by setupTestServices.
type testServices struct {
	answer   *mockAnswerService
	search   *mockSearchService
	feedback *mockFeedbackService
	refresh  *mockRefreshService
}

func setupTestServices() (*testServices, func()) {
	svc := &testServices{
		answer: &mockAnswerService{answer: &domain.Answer{
			InteractionID: "q-1",
			Intent:        domain.IntentTroubleshooting,
			Response: domain.Response{
				Text:           "This looks like an answered StackOverflow question \"npm EACCES\".",
				CitedDocuments: []string{"1001"},
				Citations: []domain.Citation{{
					Source: domain.SourceStackOverflow,
					ID:     "1001",
					URL:    "https://stackoverflow.com/q/1001",
					Title:  "npm EACCES",
				}},
				Confidence: 0.82,
			},
		}},
		search: &mockSearchService{results: []domain.ScoredDocument{{
			Document: domain.Document{
				Source:   domain.SourceGitHub,
				ID:       "octo/repo#12",
				Title:    "Build fails on arm64",
				URL:      "https://github.com/octo/repo/issues/12",
				Resolved: true,
			},
			Score: 3.2,
		}}},
		feedback: &mockFeedbackService{
			stats: &domain.UsageStats{
				Interactions: domain.InteractionStats{TotalQueries: 12, FallbackCount: 2, AverageConfidence: 0.64},
				Documents:    map[domain.Source]int{domain.SourceGitHub: 40, domain.SourceStackOverflow: 55},
				Sync: []domain.SyncState{{
					Source:    domain.SourceGitHub,
					LastRun:   time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
					LastError: "rate limited",
				}},
				Budgets: []domain.BudgetStatus{{Source: domain.SourceStackOverflow, Remaining: 9000, Limit: 10000}},
			},
			topics: []domain.TopicCount{{Topic: "npm", Count: 4}},
		},
		refresh: &mockRefreshService{},
	}

	old := app
	app = &App{
		Answer:   svc.answer,
		Search:   svc.search,
		Feedback: svc.feedback,
		Refresh:  svc.refresh,
	}
	return svc, func() {
		app = old
	}
}

// execute runs the root command with args and returns its output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
