package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

func understand(t *testing.T, query string) *domain.QueryRepresentation {
	t.Helper()
	rep, err := newTestUnderstanding().Understand(context.Background(), query)
	require.NoError(t, err)
	return rep
}

func TestRetrieve_RanksAcceptedAnswerFirst(t *testing.T) {
	idx := newTestIndex(t, eaccesQuestion(), cssQuestion(), npmIssue())
	svc := NewRetrievalService(idx, nil, testRanking(), nil)

	result, err := svc.Retrieve(context.Background(), understand(t, "npm install fails with EACCES error"))
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)

	top := result.Top()
	assert.Equal(t, "1001", top.Document.ID)
	assert.Greater(t, top.TrustScore, 0.5)
	// Four of the five query terms: npm, eacces, install, fails.
	assert.InDelta(t, 0.8, top.LexicalScore, 1e-9)
	assert.False(t, result.PartialCoverage)
	assert.Empty(t, result.FailedSources)

	for i := 1; i < len(result.Candidates); i++ {
		assert.LessOrEqual(t, result.Candidates[i].FinalScore, result.Candidates[i-1].FinalScore)
	}
	for _, c := range result.Candidates {
		assert.GreaterOrEqual(t, c.FinalScore, testRanking().MinRelevance)
		assert.InDelta(t,
			(c.LexicalScore+c.SemanticScore+c.TrustScore)/3, c.FinalScore, 1e-9)
	}
}

func TestRetrieve_NoMatches(t *testing.T) {
	svc := NewRetrievalService(newTestIndex(t), nil, testRanking(), nil)

	result, err := svc.Retrieve(context.Background(), understand(t, "npm install fails with EACCES error"))
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.Nil(t, result.Top())
	assert.False(t, result.PartialCoverage)
}

func TestRetrieve_UnrelatedIndexFallsBack(t *testing.T) {
	idx := newTestIndex(t, cssQuestion())
	cfg := testRanking()
	svc := NewRetrievalService(idx, nil, cfg, nil)

	rep := understand(t, "how to configure webpack aliases for container builds")
	result, err := svc.Retrieve(context.Background(), rep)
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)

	resp := NewSynthesizer(cfg).Synthesize(rep, result)
	assert.True(t, resp.FallbackUsed)
	assert.Empty(t, resp.CitedDocuments)
	assert.Empty(t, resp.Citations)
}

func TestRetrieve_SlowSourceGivesPartialCoverage(t *testing.T) {
	so := &mockConnector{source: domain.SourceStackOverflow, query: []domain.Document{eaccesQuestion()}}
	gh := &mockConnector{source: domain.SourceGitHub, block: true}

	cfg := testRanking()
	cfg.LiveLookup = true
	cfg.SourceTimeout = 100 * time.Millisecond
	metrics := newRecordingMetrics()

	svc := NewRetrievalService(newTestIndex(t), []driven.SourceConnector{so, gh}, cfg, metrics)

	start := time.Now()
	result, err := svc.Retrieve(context.Background(), understand(t, "npm install fails with EACCES error"))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, result.PartialCoverage)
	assert.Equal(t, []domain.Source{domain.SourceGitHub}, result.FailedSources)
	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, "1001", result.Top().Document.ID)
	for _, c := range result.Candidates {
		assert.Equal(t, domain.SourceStackOverflow, c.Document.Source)
	}
	assert.Equal(t, map[domain.Source]string{domain.SourceGitHub: reasonTimeout}, metrics.failures)
}

func TestRetrieve_AllSourcesFail(t *testing.T) {
	so := &mockConnector{source: domain.SourceStackOverflow, err: fmt.Errorf("%w: 503", domain.ErrSourceUnavailable)}
	gh := &mockConnector{source: domain.SourceGitHub, err: fmt.Errorf("%w: github", domain.ErrRateLimited)}

	cfg := testRanking()
	cfg.LiveLookup = true
	metrics := newRecordingMetrics()

	svc := NewRetrievalService(newTestIndex(t, eaccesQuestion()), []driven.SourceConnector{so, gh}, cfg, metrics)

	result, err := svc.Retrieve(context.Background(), understand(t, "npm install fails with EACCES error"))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, reasonUnavailable, metrics.failures[domain.SourceStackOverflow])
	assert.Equal(t, reasonRateLimited, metrics.failures[domain.SourceGitHub])
}

func TestRetrieve_LiveLookupUpsertsDocuments(t *testing.T) {
	so := &mockConnector{source: domain.SourceStackOverflow, query: []domain.Document{eaccesQuestion()}}
	gh := &mockConnector{source: domain.SourceGitHub, query: []domain.Document{npmIssue()}}

	cfg := testRanking()
	cfg.LiveLookup = true
	idx := newTestIndex(t)
	svc := NewRetrievalService(idx, []driven.SourceConnector{so, gh}, cfg, nil)

	rep := understand(t, "npm install fails with EACCES error")
	_, err := svc.Retrieve(context.Background(), rep)
	require.NoError(t, err)

	for _, doc := range []domain.Document{eaccesQuestion(), npmIssue()} {
		got, err := idx.Get(context.Background(), doc.Key())
		require.NoError(t, err)
		assert.Equal(t, doc.Title, got.Title)
	}

	assert.EqualValues(t, 1, so.queryCalls.Load())
	so.mu.Lock()
	terms := so.lastTerms
	so.mu.Unlock()
	assert.LessOrEqual(t, len(terms), maxLookupTerms)
	assert.Equal(t, []string{"npm", "EACCES"}, terms[:2])
}

func TestRetrieve_LiveLookupDisabled(t *testing.T) {
	so := &mockConnector{source: domain.SourceStackOverflow, query: []domain.Document{eaccesQuestion()}}
	svc := NewRetrievalService(newTestIndex(t), []driven.SourceConnector{so}, testRanking(), nil)

	_, err := svc.Retrieve(context.Background(), understand(t, "npm install fails with EACCES error"))
	require.NoError(t, err)
	assert.Zero(t, so.queryCalls.Load())
}

func TestRetrieve_Cancelled(t *testing.T) {
	svc := NewRetrievalService(newTestIndex(t, eaccesQuestion()), nil, testRanking(), nil)
	rep := understand(t, "npm install fails with EACCES error")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Retrieve(ctx, rep)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRank_TieBreak(t *testing.T) {
	cfg := domain.RankingConfig{LexicalWeight: 1, MatchFloor: 0.5}
	svc := NewRetrievalService(nil, nil, cfg, nil)

	doc := func(id string, score int) domain.ScoredDocument {
		return domain.ScoredDocument{
			Document: domain.Document{ID: id, Source: domain.SourceStackOverflow, Title: "npm EACCES", Score: score},
			Score:    2,
		}
	}
	hits := []sourceHits{{lexical: []domain.ScoredDocument{doc("b", 5), doc("c", 10), doc("a", 5)}}}

	ranked := svc.rank(hits, []string{"npm", "EACCES"}, cfg)
	require.Len(t, ranked, 3)
	assert.Equal(t, "c", ranked[0].Document.ID)
	assert.Equal(t, "a", ranked[1].Document.ID)
	assert.Equal(t, "b", ranked[2].Document.ID)
	for _, r := range ranked {
		assert.Equal(t, 1.0, r.FinalScore)
	}
}

func TestRank_ScoringRules(t *testing.T) {
	cfg := domain.DefaultRankingConfig()
	svc := NewRetrievalService(nil, nil, cfg, nil)

	so := domain.Document{ID: "1", Source: domain.SourceStackOverflow, Title: "npm install fails with EACCES"}
	gh := domain.Document{ID: "2", Source: domain.SourceGitHub, Title: "EACCES from npm"}
	loose := domain.Document{ID: "3", Source: domain.SourceGitHub, Title: "install a theme", Score: 500, Resolved: true}
	weak := domain.Document{ID: "4", Source: domain.SourceGitHub, Title: "npm install fails with EACCES"}

	hits := []sourceHits{
		{
			// The raw lexical score plays no part; coverage of the query does.
			lexical: []domain.ScoredDocument{{Document: so, Score: 0.5}},
			// Semantic hit on the same document merges into one candidate.
			semantic: []domain.ScoredDocument{{Document: so, Score: 0.9}},
		},
		{
			lexical: []domain.ScoredDocument{{Document: gh, Score: 40}, {Document: loose, Score: 90}},
			semantic: []domain.ScoredDocument{
				{Document: gh, Score: 1.4},
				{Document: loose, Score: 0.3},
				{Document: weak, Score: cfg.SemanticFloor / 2},
			},
		},
		{err: domain.ErrSourceUnavailable, lexical: []domain.ScoredDocument{{Document: weak, Score: 1}}},
	}

	ranked := svc.rank(hits, []string{"npm", "EACCES", "install", "fails"}, cfg)
	require.Len(t, ranked, 2)

	byID := map[string]domain.RankedCandidate{}
	for _, r := range ranked {
		byID[r.Document.ID] = r
	}
	assert.Equal(t, 1.0, byID["1"].LexicalScore)
	assert.Equal(t, 0.9, byID["1"].SemanticScore)
	assert.Equal(t, 0.5, byID["2"].LexicalScore)
	assert.Equal(t, 1.0, byID["2"].SemanticScore)
	// One generic shared word does not make a match, whatever the trust.
	assert.NotContains(t, byID, "3")
	assert.NotContains(t, byID, "4")
}

func TestRank_DropsBelowMinRelevance(t *testing.T) {
	cfg := domain.RankingConfig{LexicalWeight: 0.1, MinRelevance: 0.5, MatchFloor: 0.5}
	svc := NewRetrievalService(nil, nil, cfg, nil)

	hits := []sourceHits{{lexical: []domain.ScoredDocument{
		{Document: domain.Document{ID: "1", Source: domain.SourceStackOverflow, Title: "npm EACCES"}, Score: 3},
	}}}

	assert.Empty(t, svc.rank(hits, []string{"npm", "EACCES"}, cfg))
}

func TestTermCoverage(t *testing.T) {
	doc := &domain.Document{
		Title:          "npm install failed with EACCES permission denied",
		Body:           "Happens on node.js 18 with vue-router installed",
		AcceptedAnswer: "Change the prefix.",
		Tags:           []string{"permissions"},
	}

	tests := []struct {
		name  string
		terms []string
		want  float64
	}{
		{"all terms", []string{"npm", "EACCES"}, 1},
		{"inflections match", []string{"fails", "installing"}, 1},
		{"tags count", []string{"permission", "webpack"}, 0.5},
		{"dotted and hyphenated parts", []string{"node.js", "router"}, 1},
		{"phrase needs every word", []string{"permission denied", "access denied"}, 0.5},
		{"duplicates count once", []string{"EACCES", "eacces", "webpack"}, 0.5},
		{"no terms", nil, 0},
		{"unrelated", []string{"webpack", "aliases", "container", "builds"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, termCoverage(queryStems(tt.terms), doc), 1e-9)
		})
	}
}
