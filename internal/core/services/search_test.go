package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
)

func TestSearchService_Search(t *testing.T) {
	svc := NewSearchService(newTestIndex(t, eaccesQuestion(), cssQuestion(), npmIssue()))
	ctx := context.Background()

	t.Run("all sources", func(t *testing.T) {
		results, err := svc.Search(ctx, "EACCES permission", driving.SearchOptions{})
		require.NoError(t, err)
		require.Len(t, results, 2)
		ids := []string{results[0].Document.ID, results[1].Document.ID}
		assert.ElementsMatch(t, []string{"1001", "npm/cli#4711"}, ids)
		assert.Equal(t, "1001", results[0].Document.ID)
	})

	t.Run("one source", func(t *testing.T) {
		results, err := svc.Search(ctx, "EACCES", driving.SearchOptions{Source: domain.SourceGitHub})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "npm/cli#4711", results[0].Document.ID)
	})

	t.Run("limit", func(t *testing.T) {
		results, err := svc.Search(ctx, "npm", driving.SearchOptions{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("single word", func(t *testing.T) {
		results, err := svc.Search(ctx, "center", driving.SearchOptions{})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "2002", results[0].Document.ID)
	})

	t.Run("empty query", func(t *testing.T) {
		results, err := svc.Search(ctx, "   ", driving.SearchOptions{})
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("no match", func(t *testing.T) {
		results, err := svc.Search(ctx, "kubernetes", driving.SearchOptions{})
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("invalid source", func(t *testing.T) {
		_, err := svc.Search(ctx, "npm", driving.SearchOptions{Source: "reddit"})
		assert.ErrorIs(t, err, domain.ErrUnknownSource)
	})
}
