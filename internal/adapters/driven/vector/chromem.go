package vector

import (
	"context"
	"fmt"
	"sort"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// Ensure ChromemIndex implements the interface.
var _ driven.VectorIndex = (*ChromemIndex)(nil)

// ChromemIndex keeps one chromem collection per source.
type ChromemIndex struct {
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc
}

// NewChromemIndex creates an empty in-memory index.
// embedder is used only when a document arrives without a vector.
func NewChromemIndex(embedder driven.Embedder) *ChromemIndex {
	return &ChromemIndex{
		db:        chromem.NewDB(),
		embedFunc: ToChromemFunc(embedder),
	}
}

// ToChromemFunc adapts an Embedder to chromem's single-text embedding function.
func ToChromemFunc(embedder driven.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if embedder == nil {
			return nil, fmt.Errorf("no embedder configured")
		}
		vecs, err := embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vecs))
		}
		return vecs[0], nil
	}
}

func (x *ChromemIndex) collection(source domain.Source) (*chromem.Collection, error) {
	if !source.IsValid() {
		return nil, domain.ErrUnknownSource
	}
	col, err := x.db.GetOrCreateCollection(string(source), nil, x.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("opening %s collection: %w", source, err)
	}
	return col, nil
}

// Add inserts or replaces the vector for key.
// A zero vector cannot be normalised, so it removes any previous vector instead.
func (x *ChromemIndex) Add(ctx context.Context, key domain.DocKey, embedding []float32) error {
	if key.ID == "" {
		return domain.ErrInvalidInput
	}
	if isZero(embedding) {
		return x.Delete(ctx, key)
	}
	col, err := x.collection(key.Source)
	if err != nil {
		return err
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	if err := col.AddDocument(ctx, chromem.Document{ID: key.ID, Embedding: vec}); err != nil {
		return fmt.Errorf("adding vector %s: %w", key, err)
	}
	return nil
}

// Delete removes the vector for key. Missing keys are ignored.
func (x *ChromemIndex) Delete(ctx context.Context, key domain.DocKey) error {
	if !key.Source.IsValid() {
		return domain.ErrUnknownSource
	}
	col := x.db.GetCollection(string(key.Source), x.embedFunc)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, key.ID); err != nil {
		return fmt.Errorf("deleting vector %s: %w", key, err)
	}
	return nil
}

// Search returns up to k nearest neighbours, most similar first.
// Equal similarities are ordered by id.
func (x *ChromemIndex) Search(ctx context.Context, source domain.Source, query []float32, k int) ([]driven.VectorHit, error) {
	if !source.IsValid() {
		return nil, domain.ErrUnknownSource
	}
	if k <= 0 || isZero(query) {
		return nil, nil
	}
	col := x.db.GetCollection(string(source), x.embedFunc)
	if col == nil {
		return nil, nil
	}
	// chromem requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying %s vectors: %w", source, err)
	}

	hits := make([]driven.VectorHit, len(results))
	for i, r := range results {
		hits[i] = driven.VectorHit{
			Key:        domain.DocKey{Source: source, ID: r.ID},
			Similarity: float64(r.Similarity),
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Key.ID < hits[j].Key.ID
	})
	return hits, nil
}

// Count returns the number of vectors held for source.
func (x *ChromemIndex) Count(source domain.Source) int {
	col := x.db.GetCollection(string(source), x.embedFunc)
	if col == nil {
		return 0
	}
	return col.Count()
}

func isZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
