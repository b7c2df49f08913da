package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Odushhh/tech-support-chatbot/internal/connectors/retry"
	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// mockGovernor implements driven.RateGovernor for testing.
type mockGovernor struct {
	mu           sync.Mutex
	acquired     int
	acquiredFrom []domain.Source
	observedFrom []domain.Source
	remaining    []int
	err          error
}

func (g *mockGovernor) Acquire(_ context.Context, source domain.Source) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquired++
	g.acquiredFrom = append(g.acquiredFrom, source)
	return g.err
}

func (g *mockGovernor) Observe(source domain.Source, remaining int, _ time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observedFrom = append(g.observedFrom, source)
	g.remaining = append(g.remaining, remaining)
}

func (g *mockGovernor) Budget(source domain.Source) domain.BudgetStatus {
	return domain.BudgetStatus{Source: source}
}

var _ driven.RateGovernor = (*mockGovernor)(nil)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 2 * time.Millisecond}
}

const issuesJSON = `[
  {
    "number": 1,
    "title": "npm install fails with EACCES",
    "body": "Running ` + "`npm install -g`" + ` fails with **EACCES**",
    "state": "closed",
    "state_reason": "completed",
    "html_url": "https://github.com/npm/cli/issues/1",
    "comments": 1,
    "labels": [{"name": "bug"}],
    "reactions": {"total_count": 12},
    "created_at": "2024-01-01T00:00:00Z",
    "updated_at": "2024-02-01T00:00:00Z"
  },
  {
    "number": 2,
    "title": "Fix install",
    "state": "open",
    "html_url": "https://github.com/npm/cli/pull/2",
    "pull_request": {"url": "https://api.github.com/repos/npm/cli/pulls/2"},
    "created_at": "2024-01-02T00:00:00Z",
    "updated_at": "2024-02-02T00:00:00Z"
  }
]`

const commentsJSON = `[
  {
    "user": {"login": "maintainer"},
    "author_association": "MEMBER",
    "body": "Set a user-owned prefix with ` + "`npm config set prefix`" + `",
    "reactions": {"total_count": 4},
    "created_at": "2024-01-03T00:00:00Z"
  }
]`

func newTestConnector(t *testing.T, handler http.Handler, gov driven.RateGovernor, repos ...string) *Connector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	parsed, err := ParseRepos(repos)
	require.NoError(t, err)

	cfg := Config{BaseURL: server.URL, Repos: parsed}
	client, err := NewClient(context.Background(), cfg, gov, fastPolicy())
	require.NoError(t, err)
	return New(cfg, client)
}

func collect(docs <-chan domain.Document, errs <-chan error) ([]domain.Document, error) {
	var out []domain.Document
	for d := range docs {
		out = append(out, d)
	}
	return out, <-errs
}

func TestConnector_Source(t *testing.T) {
	c := New(Config{}, nil)
	assert.Equal(t, domain.SourceGitHub, c.Source())
}

func TestConnector_FetchRecent(t *testing.T) {
	var since string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/npm/cli/issues", func(w http.ResponseWriter, r *http.Request) {
		since = r.URL.Query().Get("since")
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		assert.Equal(t, "asc", r.URL.Query().Get("direction"))
		w.Header().Set(HeaderRateRemaining, "4998")
		w.Header().Set(HeaderRateReset, fmt.Sprint(time.Now().Add(time.Hour).Unix()))
		fmt.Fprint(w, issuesJSON)
	})
	mux.HandleFunc("/repos/npm/cli/issues/1/comments", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(HeaderRateRemaining, "4997")
		fmt.Fprint(w, commentsJSON)
	})

	gov := &mockGovernor{}
	c := newTestConnector(t, mux, gov, "npm/cli")

	watermark := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	docs, err := collect(c.FetchRecent(context.Background(), watermark))
	require.NoError(t, err)

	assert.Equal(t, "2024-01-15T00:00:00Z", since)
	require.Len(t, docs, 1, "pull requests are skipped")
	doc := docs[0]
	assert.Equal(t, "npm/cli#1", doc.ID)
	assert.Equal(t, domain.SourceGitHub, doc.Source)
	assert.Equal(t, "Running npm install -g fails with EACCES", doc.Body)
	assert.True(t, doc.Resolved)
	assert.Equal(t, 12, doc.Score)
	assert.Equal(t, []string{"bug"}, doc.Tags)
	require.Len(t, doc.Comments, 1)
	assert.True(t, doc.Comments[0].Maintainer)

	assert.Equal(t, 2, gov.acquired)
	assert.Equal(t, []int{4998, 4997}, gov.remaining)
	assert.Equal(t, []domain.Source{domain.SourceGitHub, domain.SourceGitHub}, gov.acquiredFrom)
	assert.Equal(t, []domain.Source{domain.SourceGitHub, domain.SourceGitHub}, gov.observedFrom)
}

func TestConnector_FetchRecent_SkipsMissingRepo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/gone/repo/issues", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	mux.HandleFunc("/repos/npm/cli/issues", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	c := newTestConnector(t, mux, &mockGovernor{}, "gone/repo", "npm/cli")
	docs, err := collect(c.FetchRecent(context.Background(), time.Time{}))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestConnector_FetchRecent_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/npm/cli/issues", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"message": "bad gateway"}`)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	c := newTestConnector(t, mux, &mockGovernor{}, "npm/cli")
	_, err := collect(c.FetchRecent(context.Background(), time.Time{}))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestConnector_FetchRecent_ServerDown(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/npm/cli/issues", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"message": "unavailable"}`)
	})

	c := newTestConnector(t, mux, &mockGovernor{}, "npm/cli")
	_, err := collect(c.FetchRecent(context.Background(), time.Time{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestConnector_FetchRecent_UnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/npm/cli/issues", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	})

	c := newTestConnector(t, mux, &mockGovernor{}, "npm/cli")
	_, err := collect(c.FetchRecent(context.Background(), time.Time{}))
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestConnector_FetchRecent_GovernorRejects(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/npm/cli/issues", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[]`)
	})

	gov := &mockGovernor{err: domain.ErrRateLimited}
	c := newTestConnector(t, mux, gov, "npm/cli")
	_, err := collect(c.FetchRecent(context.Background(), time.Time{}))
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 1, gov.acquired)
}

func TestConnector_FetchByQuery(t *testing.T) {
	var query string
	mux := http.NewServeMux()
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		w.Header().Set(HeaderRateResource, "search")
		w.Header().Set(HeaderRateRemaining, "29")
		fmt.Fprint(w, `{"total_count": 1, "items": [{
			"number": 7,
			"title": "EACCES on global install",
			"body": "permission denied",
			"state": "open",
			"repository_url": "https://api.github.com/repos/npm/cli",
			"html_url": "https://github.com/npm/cli/issues/7",
			"comments": 0
		}]}`)
	})

	gov := &mockGovernor{}
	c := newTestConnector(t, mux, gov, "npm/cli")
	docs, err := collect(c.FetchByQuery(context.Background(), []string{"EACCES", "npm"}))
	require.NoError(t, err)

	assert.Equal(t, "EACCES npm is:issue repo:npm/cli", query)
	require.Len(t, docs, 1)
	assert.Equal(t, "npm/cli#7", docs[0].ID)
	assert.False(t, docs[0].Resolved)
	search := domain.SourceGitHub.SearchBudget()
	assert.Equal(t, []domain.Source{search}, gov.acquiredFrom, "search spends its own budget")
	assert.Equal(t, []domain.Source{search}, gov.observedFrom)
	assert.Equal(t, []int{29}, gov.remaining)
}

func TestConnector_FetchByQuery_NoTerms(t *testing.T) {
	c := newTestConnector(t, http.NotFoundHandler(), &mockGovernor{})
	docs, err := collect(c.FetchByQuery(context.Background(), nil))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestConnector_Closed(t *testing.T) {
	c := newTestConnector(t, http.NotFoundHandler(), &mockGovernor{}, "npm/cli")
	require.NoError(t, c.Close())

	_, err := collect(c.FetchRecent(context.Background(), time.Time{}))
	assert.ErrorIs(t, err, domain.ErrConnectorClosed)

	_, err = collect(c.FetchByQuery(context.Background(), []string{"x"}))
	assert.ErrorIs(t, err, domain.ErrConnectorClosed)
}

func TestConnector_FetchRecent_Cancelled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/npm/cli/issues", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, issuesJSON)
	})
	mux.HandleFunc("/repos/npm/cli/issues/1/comments", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, commentsJSON)
	})

	c := newTestConnector(t, mux, &mockGovernor{}, "npm/cli")
	ctx, cancel := context.WithCancel(context.Background())
	docs, errs := c.FetchRecent(ctx, time.Time{})
	cancel()

	var n int
	for range docs {
		n++
	}
	err := <-errs
	if n == 0 {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
