package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with citations", func(t *testing.T) {
		answers := &mockAnswerService{answer: &domain.Answer{
			InteractionID: "q-1",
			Response: domain.Response{
				Text:       "Fix the npm prefix.",
				Confidence: 0.8,
				Citations: []domain.Citation{{
					Source: domain.SourceStackOverflow,
					ID:     "1001",
					URL:    "https://stackoverflow.com/q/1001",
					Title:  "npm EACCES",
				}},
			},
		}}
		server := newTestServer(t, &Ports{Answer: answers, Search: &mockSearchService{}})

		result, output, err := server.handleAsk(ctx, nil, AskInput{Text: "npm install fails with EACCES"})

		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, "Fix the npm prefix.", output.Answer)
		assert.InDelta(t, 0.8, output.Confidence, 1e-9)
		assert.Equal(t, "q-1", output.QueryID)
		require.Len(t, output.Citations, 1)
		assert.Equal(t, "1001", output.Citations[0].ID)
		assert.Equal(t, []string{"npm install fails with EACCES"}, answers.asked)
	})

	t.Run("fallback has empty citations", func(t *testing.T) {
		answers := &mockAnswerService{answer: &domain.Answer{
			Response: domain.Response{Text: domain.FallbackText, FallbackUsed: true},
		}}
		server := newTestServer(t, &Ports{Answer: answers, Search: &mockSearchService{}})

		_, output, err := server.handleAsk(ctx, nil, AskInput{Text: "something obscure happened here"})

		require.NoError(t, err)
		assert.True(t, output.Fallback)
		assert.NotNil(t, output.Citations)
		assert.Empty(t, output.Citations)
	})

	t.Run("too short question is a tool error", func(t *testing.T) {
		answers := &mockAnswerService{err: domain.ErrQueryTooShort}
		server := newTestServer(t, &Ports{Answer: answers, Search: &mockSearchService{}})

		result, _, err := server.handleAsk(ctx, nil, AskInput{Text: "hi"})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.IsError)
		require.Len(t, result.Content, 1)
		text, ok := result.Content[0].(*mcp.TextContent)
		require.True(t, ok)
		assert.Contains(t, text.Text, "too short")
	})

	t.Run("other errors are returned", func(t *testing.T) {
		answers := &mockAnswerService{err: domain.ErrSourceUnavailable}
		server := newTestServer(t, &Ports{Answer: answers, Search: &mockSearchService{}})

		_, _, err := server.handleAsk(ctx, nil, AskInput{Text: "npm install fails with EACCES"})

		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	})
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns results", func(t *testing.T) {
		search := &mockSearchService{results: []domain.ScoredDocument{
			{
				Document: domain.Document{
					Source:   domain.SourceGitHub,
					ID:       "octo/repo#12",
					Title:    "Build fails on arm64",
					URL:      "https://github.com/octo/repo/issues/12",
					Resolved: true,
				},
				Score: 2.5,
			},
		}}
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{}, Search: search})

		result, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "arm64 build", Source: "github", Limit: 5})

		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "github", output.Results[0].Source)
		assert.Equal(t, "octo/repo#12", output.Results[0].ID)
		assert.True(t, output.Results[0].Resolved)
		assert.InDelta(t, 2.5, output.Results[0].Score, 1e-9)
		assert.Equal(t, domain.SourceGitHub, search.opts.Source)
		assert.Equal(t, 5, search.opts.Limit)
	})

	t.Run("default limit", func(t *testing.T) {
		search := &mockSearchService{}
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{}, Search: search})

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "anything"})

		require.NoError(t, err)
		assert.Equal(t, 10, search.opts.Limit)
		assert.Equal(t, 0, output.Count)
		assert.Empty(t, output.Results)
	})

	t.Run("search error", func(t *testing.T) {
		search := &mockSearchService{err: errors.New("index closed")}
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{}, Search: search})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "anything"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "index closed")
	})
}
