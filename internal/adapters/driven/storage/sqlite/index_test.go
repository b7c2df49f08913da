package sqlite

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/embedding/hashing"
	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/vector"
	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// countingEmbedder wraps the hashing embedder and counts calls.
type countingEmbedder struct {
	*hashing.Embedder
	calls atomic.Int32
	fail  atomic.Bool
}

func newCountingEmbedder(dims int) *countingEmbedder {
	return &countingEmbedder{Embedder: hashing.New(dims)}
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return nil, errors.New("embedder down")
	}
	return c.Embedder.Embed(ctx, texts)
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func eaccesQuestion() domain.Document {
	return domain.Document{
		ID:             "1001",
		Source:         domain.SourceStackOverflow,
		Title:          "npm install fails with EACCES permission denied",
		Body:           "Running npm install -g fails with EACCES on mkdir /usr/local/lib",
		Tags:           []string{"npm", "node.js"},
		AcceptedAnswer: "Change npm's default directory or use nvm.",
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

func webpackIssue() domain.Document {
	return domain.Document{
		ID:        "webpack/webpack#17000",
		Source:    domain.SourceGitHub,
		Title:     "Build fails with Module not found",
		Body:      "webpack 5 cannot resolve fs in browser build",
		Tags:      []string{"bug"},
		Score:     5,
		URL:       "https://github.com/webpack/webpack/issues/17000",
		CreatedAt: t0,
		UpdatedAt: t0.Add(time.Hour),
	}
}

func setupIndex(t *testing.T) (*Store, *Index, *countingEmbedder, *vector.ChromemIndex) {
	t.Helper()
	store := setupTestStore(t)
	emb := newCountingEmbedder(64)
	vecs := vector.NewChromemIndex(emb)
	idx, err := store.DocumentIndex(context.Background(), emb, vecs)
	require.NoError(t, err)
	return store, idx, emb, vecs
}

func TestIndex_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	_, idx, _, vecs := setupIndex(t)

	doc := eaccesQuestion()
	require.NoError(t, idx.Upsert(ctx, doc))

	got, err := idx.Get(ctx, doc.Key())
	require.NoError(t, err)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Body, got.Body)
	assert.Equal(t, doc.Tags, got.Tags)
	assert.Equal(t, doc.AcceptedAnswer, got.AcceptedAnswer)
	assert.Equal(t, 42, got.Score)
	assert.True(t, got.Resolved)
	assert.True(t, got.CreatedAt.Equal(doc.CreatedAt))
	assert.True(t, got.UpdatedAt.Equal(doc.UpdatedAt))
	require.Len(t, got.Comments, 1)
	assert.True(t, got.Comments[0].Accepted)
	assert.Len(t, got.Embedding, 64)
	assert.Equal(t, 1, vecs.Count(domain.SourceStackOverflow))

	n, err := idx.Count(ctx, domain.SourceStackOverflow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIndex_GetNotFound(t *testing.T) {
	_, idx, _, _ := setupIndex(t)

	_, err := idx.Get(context.Background(), domain.DocKey{Source: domain.SourceGitHub, ID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, idx, emb, _ := setupIndex(t)

	doc := eaccesQuestion()
	require.NoError(t, idx.Upsert(ctx, doc))

	var indexedAt string
	require.NoError(t, store.db.QueryRow("SELECT indexed_at FROM documents").Scan(&indexedAt))
	before, err := idx.Search(ctx, domain.IndexQuery{Keywords: []string{"eacces"}})
	require.NoError(t, err)
	calls := emb.calls.Load()

	require.NoError(t, idx.Upsert(ctx, doc))

	var indexedAgain string
	require.NoError(t, store.db.QueryRow("SELECT indexed_at FROM documents").Scan(&indexedAgain))
	assert.Equal(t, indexedAt, indexedAgain, "no write")
	assert.Equal(t, calls, emb.calls.Load(), "no re-embedding")

	after, err := idx.Search(ctx, domain.IndexQuery{Keywords: []string{"eacces"}})
	require.NoError(t, err)
	assert.Equal(t, before, after)

	n, err := idx.Count(ctx, domain.SourceStackOverflow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIndex_UpsertRefreshesMutableFields(t *testing.T) {
	ctx := context.Background()
	_, idx, _, _ := setupIndex(t)

	doc := eaccesQuestion()
	require.NoError(t, idx.Upsert(ctx, doc))

	doc.Score = 50
	doc.UpdatedAt = doc.UpdatedAt.Add(time.Hour)
	doc.CreatedAt = doc.CreatedAt.Add(time.Minute)
	require.NoError(t, idx.Upsert(ctx, doc))

	got, err := idx.Get(ctx, doc.Key())
	require.NoError(t, err)
	assert.Equal(t, 50, got.Score)
	assert.True(t, got.UpdatedAt.Equal(doc.UpdatedAt))
	assert.True(t, got.CreatedAt.Equal(t0), "created at is kept from the first ingest")

	n, err := idx.Count(ctx, domain.SourceStackOverflow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIndex_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	_, idx, _, _ := setupIndex(t)

	doc := eaccesQuestion()
	doc.ID = ""
	assert.ErrorIs(t, idx.Upsert(ctx, doc), domain.ErrInvalidInput)

	doc = eaccesQuestion()
	doc.Source = "jira"
	assert.ErrorIs(t, idx.Upsert(ctx, doc), domain.ErrUnknownSource)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, idx.Upsert(cancelled, eaccesQuestion()), context.Canceled)
}

func TestIndex_UpsertWithoutEmbedder(t *testing.T) {
	ctx := context.Background()
	_, idx, emb, vecs := setupIndex(t)

	emb.fail.Store(true)
	doc := eaccesQuestion()
	require.NoError(t, idx.Upsert(ctx, doc), "stored lexical-only")

	got, err := idx.Get(ctx, doc.Key())
	require.NoError(t, err)
	assert.Empty(t, got.Embedding)
	assert.Equal(t, 0, vecs.Count(domain.SourceStackOverflow))

	emb.fail.Store(false)
	require.NoError(t, idx.Upsert(ctx, doc))

	got, err = idx.Get(ctx, doc.Key())
	require.NoError(t, err)
	assert.Len(t, got.Embedding, 64, "vector filled on the next upsert")
	assert.Equal(t, 1, vecs.Count(domain.SourceStackOverflow))
}

func TestIndex_Search(t *testing.T) {
	ctx := context.Background()
	_, idx, _, _ := setupIndex(t)

	require.NoError(t, idx.Upsert(ctx, eaccesQuestion()))
	require.NoError(t, idx.Upsert(ctx, webpackIssue()))

	t.Run("entity match", func(t *testing.T) {
		results, err := idx.Search(ctx, domain.IndexQuery{Entities: []string{"EACCES"}, Keywords: []string{"npm"}})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "1001", results[0].Document.ID)
		assert.Greater(t, results[0].Score, 0.0)
	})

	t.Run("any term matches", func(t *testing.T) {
		results, err := idx.Search(ctx, domain.IndexQuery{Keywords: []string{"fails"}})
		require.NoError(t, err)
		assert.Len(t, results, 2)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	})

	t.Run("source filter", func(t *testing.T) {
		results, err := idx.Search(ctx, domain.IndexQuery{Source: domain.SourceGitHub, Keywords: []string{"fails"}})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, domain.SourceGitHub, results[0].Document.Source)
	})

	t.Run("limit", func(t *testing.T) {
		results, err := idx.Search(ctx, domain.IndexQuery{Keywords: []string{"fails"}, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("no usable terms", func(t *testing.T) {
		results, err := idx.Search(ctx, domain.IndexQuery{Keywords: []string{"!!", ""}})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("quotes are escaped", func(t *testing.T) {
		_, err := idx.Search(ctx, domain.IndexQuery{Keywords: []string{`say "hi"`, "OR", "NEAR("}})
		require.NoError(t, err)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := idx.Search(ctx, domain.IndexQuery{Source: "jira", Keywords: []string{"npm"}})
		assert.ErrorIs(t, err, domain.ErrUnknownSource)
	})
}

func TestIndex_SearchRanksTitleAboveBody(t *testing.T) {
	ctx := context.Background()
	_, idx, _, _ := setupIndex(t)

	inTitle := webpackIssue()
	inTitle.ID = "a/b#1"
	inTitle.Title = "segfault when starting"
	inTitle.Body = "the process exits"

	inBody := webpackIssue()
	inBody.ID = "a/b#2"
	inBody.Title = "process exits on start"
	inBody.Body = "it ends with a segfault after loading the native module and printing a long trace"

	require.NoError(t, idx.Upsert(ctx, inBody))
	require.NoError(t, idx.Upsert(ctx, inTitle))

	results, err := idx.Search(ctx, domain.IndexQuery{Keywords: []string{"segfault"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a/b#1", results[0].Document.ID)
}

func TestIndex_CorruptRowsAreSkipped(t *testing.T) {
	ctx := context.Background()
	store, idx, _, _ := setupIndex(t)

	require.NoError(t, idx.Upsert(ctx, eaccesQuestion()))
	bad := eaccesQuestion()
	bad.ID = "1002"
	require.NoError(t, idx.Upsert(ctx, bad))

	_, err := store.db.Exec("UPDATE documents SET comments = '{broken' WHERE id = '1002'")
	require.NoError(t, err)

	results, err := idx.Search(ctx, domain.IndexQuery{Entities: []string{"EACCES"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1001", results[0].Document.ID)

	_, err = idx.Get(ctx, bad.Key())
	assert.ErrorIs(t, err, domain.ErrIndexCorruption)

	vec, err := newCountingEmbedder(64).Embed(ctx, []string{bad.IndexText()})
	require.NoError(t, err)
	hits, err := idx.EmbeddingSearch(ctx, domain.SourceStackOverflow, vec[0], 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1001", hits[0].Document.ID)

	require.NoError(t, idx.Upsert(ctx, bad), "a corrupt row is replaced")
	_, err = idx.Get(ctx, bad.Key())
	assert.NoError(t, err)
}

func TestIndex_EmbeddingSearch(t *testing.T) {
	ctx := context.Background()
	_, idx, emb, _ := setupIndex(t)

	require.NoError(t, idx.Upsert(ctx, eaccesQuestion()))
	other := eaccesQuestion()
	other.ID = "2002"
	other.Title = "How to center a div with flexbox"
	other.Body = "css layout question"
	other.AcceptedAnswer = "Use justify-content and align-items."
	require.NoError(t, idx.Upsert(ctx, other))
	require.NoError(t, idx.Upsert(ctx, webpackIssue()))

	vecs, err := emb.Embed(ctx, []string{"npm install EACCES permission denied"})
	require.NoError(t, err)

	results, err := idx.EmbeddingSearch(ctx, domain.SourceStackOverflow, vecs[0], 10)
	require.NoError(t, err)
	require.Len(t, results, 2, "only the requested source")
	assert.Equal(t, "1001", results[0].Document.ID)
	assert.Greater(t, results[0].Score, results[1].Score)

	results, err = idx.EmbeddingSearch(ctx, domain.SourceStackOverflow, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = idx.EmbeddingSearch(ctx, "jira", vecs[0], 10)
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
}

func TestIndex_VectorsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	emb := newCountingEmbedder(64)
	idx, err := store.DocumentIndex(ctx, emb, vector.NewChromemIndex(emb))
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, eaccesQuestion()))
	require.NoError(t, idx.Upsert(ctx, webpackIssue()))
	require.NoError(t, store.Close())

	t.Run("same model loads stored vectors", func(t *testing.T) {
		store, err := NewStore(dir)
		require.NoError(t, err)
		defer store.Close()

		emb := newCountingEmbedder(64)
		vecs := vector.NewChromemIndex(emb)
		_, err = store.DocumentIndex(ctx, emb, vecs)
		require.NoError(t, err)

		assert.Equal(t, 1, vecs.Count(domain.SourceStackOverflow))
		assert.Equal(t, 1, vecs.Count(domain.SourceGitHub))
		assert.Equal(t, int32(0), emb.calls.Load())
	})

	t.Run("new model recomputes vectors", func(t *testing.T) {
		store, err := NewStore(dir)
		require.NoError(t, err)
		defer store.Close()

		emb := newCountingEmbedder(32)
		vecs := vector.NewChromemIndex(emb)
		idx, err := store.DocumentIndex(ctx, emb, vecs)
		require.NoError(t, err)

		assert.Equal(t, 1, vecs.Count(domain.SourceStackOverflow))
		assert.Equal(t, int32(1), emb.calls.Load(), "one batch")

		eacces := eaccesQuestion()
		got, err := idx.Get(ctx, eacces.Key())
		require.NoError(t, err)
		assert.Len(t, got.Embedding, 32)
	})
}

func TestMatchExpression(t *testing.T) {
	tests := []struct {
		name     string
		terms    []string
		expected string
	}{
		{name: "empty", terms: nil, expected: ""},
		{name: "single", terms: []string{"npm"}, expected: `"npm"`},
		{name: "or joined", terms: []string{"npm", "EACCES"}, expected: `"npm" OR "EACCES"`},
		{name: "quotes doubled", terms: []string{`a"b`}, expected: `"a""b"`},
		{name: "punctuation only dropped", terms: []string{"--", "x"}, expected: `"x"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, matchExpression(tc.terms))
		})
	}
}
