package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/storage/memory"
	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// mapCache implements driven.ResponseCache for testing.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]domain.Response
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]domain.Response)}
}

func (c *mapCache) GetCached(key string) (domain.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.entries[key]
	return resp, ok
}

func (c *mapCache) Put(key string, resp domain.Response, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resp
}

func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// countingRetriever wraps a Retriever and counts calls.
type countingRetriever struct {
	next   Retriever
	result *domain.RetrievalResult
	err    error
	calls  atomic.Int32
}

func (r *countingRetriever) Retrieve(ctx context.Context, rep *domain.QueryRepresentation) (*domain.RetrievalResult, error) {
	r.calls.Add(1)
	if r.next != nil {
		return r.next.Retrieve(ctx, rep)
	}
	return r.result, r.err
}

// failingInteractions implements driven.InteractionStore and rejects every write.
type failingInteractions struct {
	*memory.InteractionStore
}

func (failingInteractions) RecordInteraction(context.Context, domain.Interaction) error {
	return errors.New("disk full")
}

func newTestEngine(t *testing.T, retriever Retriever, cache *mapCache, opts ...EngineOption) *Engine {
	t.Helper()
	var c driven.ResponseCache
	if cache != nil {
		c = cache
	}
	return NewEngine(newTestUnderstanding(), retriever, NewSynthesizer(testRanking()), c, opts...)
}

const eaccesQuery = "npm install fails with EACCES error"

func TestEngine_AnswersFromIndex(t *testing.T) {
	idx := newTestIndex(t, eaccesQuestion(), cssQuestion(), npmIssue())
	retriever := &countingRetriever{next: NewRetrievalService(idx, nil, testRanking(), nil)}
	interactions := memory.NewInteractionStore()
	metrics := newRecordingMetrics()

	engine := newTestEngine(t, retriever, newMapCache(), WithInteractionStore(interactions), WithMetrics(metrics))

	answer, err := engine.Ask(context.Background(), eaccesQuery)
	require.NoError(t, err)

	assert.False(t, answer.Response.FallbackUsed)
	require.NotEmpty(t, answer.Response.CitedDocuments)
	assert.Equal(t, "1001", answer.Response.CitedDocuments[0])
	assert.Equal(t, domain.IntentTroubleshooting, answer.Intent)
	assert.False(t, answer.Cached)
	assert.NotEmpty(t, answer.InteractionID)

	logged, err := interactions.GetInteraction(context.Background(), answer.InteractionID)
	require.NoError(t, err)
	assert.Equal(t, "npm install fails with eacces error", logged.Query)
	assert.Equal(t, answer.Response.CitedDocuments, logged.CitedDocuments)
	assert.Contains(t, logged.Topics, "npm")

	assert.Equal(t, []string{outcomeAnswered}, metrics.outcomes)
	assert.Equal(t, 1, metrics.misses)
}

func TestEngine_UnrelatedQueryFallsBack(t *testing.T) {
	idx := newTestIndex(t, eaccesQuestion(), cssQuestion(), npmIssue())
	retriever := &countingRetriever{next: NewRetrievalService(idx, nil, testRanking(), nil)}
	engine := newTestEngine(t, retriever, newMapCache())

	answer, err := engine.Ask(context.Background(), "how to configure webpack aliases for container builds")
	require.NoError(t, err)

	assert.True(t, answer.Response.FallbackUsed)
	assert.Equal(t, domain.FallbackText, answer.Response.Text)
	assert.Empty(t, answer.Response.CitedDocuments)
	assert.Empty(t, answer.Response.Citations)
}

func TestEngine_CachesResponses(t *testing.T) {
	idx := newTestIndex(t, eaccesQuestion(), npmIssue())
	retriever := &countingRetriever{next: NewRetrievalService(idx, nil, testRanking(), nil)}
	metrics := newRecordingMetrics()
	engine := newTestEngine(t, retriever, newMapCache(), WithMetrics(metrics))

	first, err := engine.Ask(context.Background(), eaccesQuery)
	require.NoError(t, err)
	second, err := engine.Ask(context.Background(), "  NPM install fails with EACCES error ")
	require.NoError(t, err)

	assert.EqualValues(t, 1, retriever.calls.Load())
	assert.Equal(t, first.Response, second.Response)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.InteractionID, second.InteractionID)
	assert.Equal(t, []string{outcomeAnswered, outcomeCached}, metrics.outcomes)
	assert.Equal(t, 1, metrics.hits)
}

func TestEngine_TooShort(t *testing.T) {
	retriever := &countingRetriever{}
	metrics := newRecordingMetrics()
	engine := newTestEngine(t, retriever, newMapCache(), WithMetrics(metrics))

	answer, err := engine.Ask(context.Background(), "hi")
	assert.Nil(t, answer)
	assert.ErrorIs(t, err, domain.ErrQueryTooShort)
	assert.Zero(t, retriever.calls.Load())
	assert.Equal(t, []string{outcomeTooShort}, metrics.outcomes)
}

func TestEngine_AllSourcesUnavailable(t *testing.T) {
	retriever := &countingRetriever{err: domain.ErrSourceUnavailable}
	metrics := newRecordingMetrics()
	engine := newTestEngine(t, retriever, newMapCache(), WithMetrics(metrics))

	answer, err := engine.Ask(context.Background(), eaccesQuery)
	assert.Nil(t, answer)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, []string{outcomeUnavailable}, metrics.outcomes)
}

func TestEngine_CachedAnswerSurvivesOutage(t *testing.T) {
	idx := newTestIndex(t, eaccesQuestion())
	retriever := &countingRetriever{next: NewRetrievalService(idx, nil, testRanking(), nil)}
	cache := newMapCache()
	engine := newTestEngine(t, retriever, cache)

	first, err := engine.Ask(context.Background(), eaccesQuery)
	require.NoError(t, err)

	retriever.next = nil
	retriever.err = domain.ErrSourceUnavailable

	second, err := engine.Ask(context.Background(), eaccesQuery)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Response, second.Response)
}

func TestEngine_PartialCoverageNotCached(t *testing.T) {
	retriever := &countingRetriever{result: &domain.RetrievalResult{
		Candidates:      []domain.RankedCandidate{ranked(eaccesQuestion(), 0.9)},
		PartialCoverage: true,
		FailedSources:   []domain.Source{domain.SourceGitHub},
	}}
	cache := newMapCache()
	engine := newTestEngine(t, retriever, cache)

	answer, err := engine.Ask(context.Background(), eaccesQuery)
	require.NoError(t, err)
	assert.True(t, answer.Response.PartialCoverage)
	assert.Zero(t, cache.len())

	_, err = engine.Ask(context.Background(), eaccesQuery)
	require.NoError(t, err)
	assert.EqualValues(t, 2, retriever.calls.Load())
}

func TestEngine_FallbackIsCached(t *testing.T) {
	retriever := &countingRetriever{result: &domain.RetrievalResult{}}
	cache := newMapCache()
	metrics := newRecordingMetrics()
	engine := newTestEngine(t, retriever, cache, WithMetrics(metrics))

	answer, err := engine.Ask(context.Background(), eaccesQuery)
	require.NoError(t, err)
	assert.True(t, answer.Response.FallbackUsed)
	assert.Equal(t, domain.FallbackText, answer.Response.Text)
	assert.Equal(t, 1, cache.len())
	assert.Equal(t, []string{outcomeFallback}, metrics.outcomes)
}

func TestEngine_WithoutCache(t *testing.T) {
	retriever := &countingRetriever{result: &domain.RetrievalResult{}}
	engine := newTestEngine(t, retriever, nil)

	for i := 0; i < 2; i++ {
		_, err := engine.Ask(context.Background(), eaccesQuery)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, retriever.calls.Load())
}

func TestEngine_Cancelled(t *testing.T) {
	idx := newTestIndex(t, eaccesQuestion())
	retriever := &countingRetriever{next: NewRetrievalService(idx, nil, testRanking(), nil)}
	engine := newTestEngine(t, retriever, newMapCache())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Ask(ctx, eaccesQuery)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_InteractionLogFailureIsNotFatal(t *testing.T) {
	retriever := &countingRetriever{result: &domain.RetrievalResult{}}
	store := failingInteractions{memory.NewInteractionStore()}
	engine := newTestEngine(t, retriever, nil, WithInteractionStore(store))

	answer, err := engine.Ask(context.Background(), eaccesQuery)
	require.NoError(t, err)
	assert.Empty(t, answer.InteractionID)
}

func TestOutcomeFor(t *testing.T) {
	assert.Equal(t, outcomeTooShort, outcomeFor(domain.ErrQueryTooShort))
	assert.Equal(t, outcomeUnavailable, outcomeFor(domain.ErrSourceUnavailable))
	assert.Equal(t, outcomeCancelled, outcomeFor(context.DeadlineExceeded))
	assert.Equal(t, outcomeError, outcomeFor(errors.New("boom")))
}
