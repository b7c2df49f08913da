package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbedder_Defaults(t *testing.T) {
	e := New(0)
	assert.Equal(t, DefaultDimensions, e.Dimensions())
	assert.Equal(t, "hashing-256", e.Name())
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := New(128)
	a, err := e.Embed(context.Background(), []string{"npm install fails with EACCES"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"npm install fails with EACCES"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a[0], 128)
}

func TestEmbedder_Normalised(t *testing.T) {
	vecs, err := New(64).Embed(context.Background(), []string{"permission denied when installing packages"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, math.Sqrt(dot(vecs[0], vecs[0])), 1e-5)
}

func TestEmbedder_SimilarTextsCloser(t *testing.T) {
	vecs, err := New(256).Embed(context.Background(), []string{
		"npm install fails with EACCES permission denied",
		"EACCES permission denied during npm install",
		"how to center a div with flexbox",
	})
	require.NoError(t, err)

	related := dot(vecs[0], vecs[1])
	unrelated := dot(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
	assert.Greater(t, related, 0.5)
}

func TestEmbedder_EmptyText(t *testing.T) {
	vecs, err := New(16).Embed(context.Background(), []string{""})
	require.NoError(t, err)
	for _, v := range vecs[0] {
		assert.Zero(t, v)
	}
}

func TestEmbedder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(16).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"npm", "err", "code", "eacces"}, Tokenize("npm ERR! code EACCES"))
	assert.Equal(t, []string{"err_require_esm"}, Tokenize("ERR_REQUIRE_ESM"))
	assert.Empty(t, Tokenize("  !! "))
}
