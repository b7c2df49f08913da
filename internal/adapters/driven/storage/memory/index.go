package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/embedding/hashing"
	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/storage"
	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.DocumentIndex = (*Index)(nil)

const defaultSearchLimit = 50

// BM25 parameters and per-field weights. The sqlite backend uses the same weights.
const (
	bm25K1 = 1.2
	bm25B  = 0.75

	titleWeight  = 3.0
	bodyWeight   = 1.0
	tagsWeight   = 2.0
	answerWeight = 1.5
)

type entry struct {
	doc         domain.Document
	fingerprint string
	terms       map[string]float64
	length      float64
}

// Index is an in-memory DocumentIndex.
type Index struct {
	mu       sync.RWMutex
	docs     map[domain.DocKey]*entry
	embedder driven.Embedder
	vectors  driven.VectorIndex
}

// NewIndex creates an empty index. embedder and vectors may be nil,
// which disables embedding search.
func NewIndex(embedder driven.Embedder, vectors driven.VectorIndex) *Index {
	return &Index{
		docs:     make(map[domain.DocKey]*entry),
		embedder: embedder,
		vectors:  vectors,
	}
}

// Upsert inserts or refreshes a document. Writing an unchanged document is a no-op.
func (x *Index) Upsert(ctx context.Context, doc domain.Document) error {
	if err := storage.Validate(&doc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.RLock()
	var stored *domain.Document
	var fingerprint string
	if e, ok := x.docs[doc.Key()]; ok {
		d := cloneDocument(e.doc)
		stored, fingerprint = &d, e.fingerprint
	}
	x.mu.RUnlock()

	merged := cloneDocument(storage.Merge(stored, doc))
	if stored != nil && storage.Fingerprint(&merged) == fingerprint &&
		(len(stored.Embedding) > 0 || x.embedder == nil) {
		return nil
	}

	if err := storage.EnsureEmbedding(ctx, x.embedder, &merged); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("index: %v, storing without a vector", err)
	}

	e := newEntry(merged)
	x.mu.Lock()
	x.docs[merged.Key()] = e
	x.mu.Unlock()

	if x.vectors != nil {
		if err := x.vectors.Add(ctx, merged.Key(), merged.Embedding); err != nil {
			logger.Warn("index: vector for %s not updated: %v", merged.Key(), err)
		}
	}
	return nil
}

func newEntry(doc domain.Document) *entry {
	e := &entry{
		doc:         doc,
		fingerprint: storage.Fingerprint(&doc),
		terms:       make(map[string]float64),
	}
	add := func(text string, weight float64) {
		for _, tok := range hashing.Tokenize(text) {
			e.terms[tok] += weight
			e.length += weight
		}
	}
	add(doc.Title, titleWeight)
	add(doc.Body, bodyWeight)
	for _, tag := range doc.Tags {
		add(tag, tagsWeight)
	}
	add(doc.AcceptedAnswer, answerWeight)
	return e
}

// Get returns one document or domain.ErrNotFound.
func (x *Index) Get(_ context.Context, key domain.DocKey) (*domain.Document, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.docs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := cloneDocument(e.doc)
	return &doc, nil
}

// Search scores every document in scope with BM25. Any term may match.
func (x *Index) Search(ctx context.Context, q domain.IndexQuery) ([]domain.ScoredDocument, error) {
	if q.Source != "" && !q.Source.IsValid() {
		return nil, domain.ErrUnknownSource
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := queryTokens(q.Terms())
	if len(tokens) == 0 {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var scope []*entry
	var totalLength float64
	df := make(map[string]int, len(tokens))
	for _, e := range x.docs {
		if q.Source != "" && e.doc.Source != q.Source {
			continue
		}
		scope = append(scope, e)
		totalLength += e.length
		for _, tok := range tokens {
			if e.terms[tok] > 0 {
				df[tok]++
			}
		}
	}
	if len(scope) == 0 {
		return nil, nil
	}

	n := float64(len(scope))
	avgLength := totalLength / n
	if avgLength == 0 {
		avgLength = 1
	}

	var results []domain.ScoredDocument
	for _, e := range scope {
		var score float64
		for _, tok := range tokens {
			tf := e.terms[tok]
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[tok])+0.5)/(float64(df[tok])+0.5))
			score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*e.length/avgLength))
		}
		if score > 0 {
			results = append(results, domain.ScoredDocument{Document: cloneDocument(e.doc), Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Document.Score != b.Document.Score {
			return a.Document.Score > b.Document.Score
		}
		if a.Document.ID != b.Document.ID {
			return a.Document.ID < b.Document.ID
		}
		return a.Document.Source < b.Document.Source
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// EmbeddingSearch returns the documents nearest to vector within source.
func (x *Index) EmbeddingSearch(ctx context.Context, source domain.Source, vector []float32, limit int) ([]domain.ScoredDocument, error) {
	if !source.IsValid() {
		return nil, domain.ErrUnknownSource
	}
	if x.vectors == nil || len(vector) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	hits, err := x.vectors.Search(ctx, source, vector, limit)
	if err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	results := make([]domain.ScoredDocument, 0, len(hits))
	for _, hit := range hits {
		e, ok := x.docs[hit.Key]
		if !ok {
			continue
		}
		results = append(results, domain.ScoredDocument{Document: cloneDocument(e.doc), Score: hit.Similarity})
	}
	return results, nil
}

// Count returns the number of documents stored for source.
func (x *Index) Count(_ context.Context, source domain.Source) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for key := range x.docs {
		if key.Source == source {
			n++
		}
	}
	return n, nil
}

// Close drops all documents.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.docs = make(map[domain.DocKey]*entry)
	return nil
}

func queryTokens(terms []string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, term := range terms {
		for _, tok := range hashing.Tokenize(term) {
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

func cloneDocument(d domain.Document) domain.Document {
	d.Tags = append([]string(nil), d.Tags...)
	d.Comments = append([]domain.Comment(nil), d.Comments...)
	d.Embedding = append([]float32(nil), d.Embedding...)
	return d
}
