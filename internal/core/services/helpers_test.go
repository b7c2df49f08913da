package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/embedding/hashing"
	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/storage/memory"
	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/vector"
	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/normalisers/markdown"
)

// --- Mock implementations shared by the service tests ---

// mockConnector implements driven.SourceConnector for testing.
type mockConnector struct {
	source domain.Source
	recent []domain.Document
	query  []domain.Document
	err    error

	// block makes every fetch wait for ctx to end.
	block bool

	// gate, when set, holds every fetch until it is closed.
	gate chan struct{}

	recentCalls atomic.Int32
	queryCalls  atomic.Int32

	mu        sync.Mutex
	lastSince time.Time
	lastTerms []string
}

func (m *mockConnector) Source() domain.Source { return m.source }

func (m *mockConnector) FetchRecent(ctx context.Context, since time.Time) (<-chan domain.Document, <-chan error) {
	m.recentCalls.Add(1)
	m.mu.Lock()
	m.lastSince = since
	m.mu.Unlock()
	return m.stream(ctx, m.recent)
}

func (m *mockConnector) FetchByQuery(ctx context.Context, terms []string) (<-chan domain.Document, <-chan error) {
	m.queryCalls.Add(1)
	m.mu.Lock()
	m.lastTerms = terms
	m.mu.Unlock()
	return m.stream(ctx, m.query)
}

func (m *mockConnector) Close() error { return nil }

func (m *mockConnector) since() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSince
}

func (m *mockConnector) stream(ctx context.Context, docs []domain.Document) (<-chan domain.Document, <-chan error) {
	docsCh := make(chan domain.Document)
	errsCh := make(chan error, 1)

	go func() {
		defer close(docsCh)
		defer close(errsCh)

		if m.block {
			<-ctx.Done()
			errsCh <- ctx.Err()
			return
		}
		if m.gate != nil {
			select {
			case <-m.gate:
			case <-ctx.Done():
				errsCh <- ctx.Err()
				return
			}
		}
		for _, doc := range docs {
			select {
			case <-ctx.Done():
				errsCh <- ctx.Err()
				return
			case docsCh <- doc:
			}
		}
		if m.err != nil {
			errsCh <- m.err
		}
	}()

	return docsCh, errsCh
}

// recordingMetrics implements driven.Metrics for testing.
type recordingMetrics struct {
	mu        sync.Mutex
	outcomes  []string
	failures  map[domain.Source]string
	hits      int
	misses    int
	refreshed map[domain.Source]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		failures:  make(map[domain.Source]string),
		refreshed: make(map[domain.Source]int),
	}
}

func (m *recordingMetrics) ObserveQuery(_ domain.Intent, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) SourceFailure(source domain.Source, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[source] = reason
}

func (m *recordingMetrics) CacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *recordingMetrics) DocumentsRefreshed(source domain.Source, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed[source] += n
}

func (m *recordingMetrics) RateLimited(domain.Source) {}

// --- Fixtures ---

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func eaccesQuestion() domain.Document {
	return domain.Document{
		ID:             "1001",
		Source:         domain.SourceStackOverflow,
		Title:          "npm install fails with EACCES permission denied",
		Body:           "Running npm install -g fails with EACCES: permission denied, mkdir /usr/local/lib/node_modules",
		Tags:           []string{"npm", "node.js", "permissions"},
		AcceptedAnswer: "Do not use sudo. Change npm's default directory with npm config set prefix ~/.npm-global, or install node with nvm.",
		Score:          42,
		Resolved:       true,
		URL:            "https://stackoverflow.com/q/1001",
		CreatedAt:      t0,
		UpdatedAt:      t0.Add(time.Hour),
		Comments: []domain.Comment{
			{Author: "bob", Body: "Use nvm", Score: 30, Accepted: true, CreatedAt: t0.Add(2 * time.Hour)},
		},
	}
}

func cssQuestion() domain.Document {
	return domain.Document{
		ID:             "2002",
		Source:         domain.SourceStackOverflow,
		Title:          "How to center a div horizontally",
		Body:           "I want to center a block element inside its parent container",
		Tags:           []string{"css", "flexbox"},
		AcceptedAnswer: "Use display flex with justify-content center on the parent.",
		Score:          100,
		Resolved:       true,
		URL:            "https://stackoverflow.com/q/2002",
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
}

func npmIssue() domain.Document {
	return domain.Document{
		ID:        "npm/cli#4711",
		Source:    domain.SourceGitHub,
		Title:     "EACCES when running npm install globally",
		Body:      "npm install -g typescript fails with EACCES on macOS",
		Tags:      []string{"bug"},
		Score:     3,
		URL:       "https://github.com/npm/cli/issues/4711",
		CreatedAt: t0,
		UpdatedAt: t0.Add(30 * time.Minute),
		Comments: []domain.Comment{
			{Author: "maintainer", Body: "Fix the permissions of your global prefix directory.", Maintainer: true, CreatedAt: t0},
		},
	}
}

func newTestIndex(t *testing.T, docs ...domain.Document) *memory.Index {
	t.Helper()
	emb := hashing.New(256)
	idx := memory.NewIndex(emb, vector.NewChromemIndex(emb))
	for _, doc := range docs {
		require.NoError(t, idx.Upsert(context.Background(), doc))
	}
	return idx
}

func newTestUnderstanding() *UnderstandingService {
	return NewUnderstandingService(DefaultUnderstandingConfig(), markdown.New(), hashing.New(256))
}

func testRanking() domain.RankingConfig {
	cfg := domain.DefaultRankingConfig()
	cfg.LiveLookup = false
	return cfg
}
