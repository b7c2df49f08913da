package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driven/storage"
	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.DocumentIndex = (*Index)(nil)

const (
	defaultSearchLimit = 50
	reembedBatchSize   = 32
)

// documentColumns is the column list read by scanDocument.
const documentColumns = `d.source, d.id, d.title, d.body, d.tags, d.accepted_answer, d.score, d.resolved,
	d.comments, d.url, d.created_at, d.updated_at, d.embedding, d.embedding_model`

// Index is the persistent document index.
// Lexical search runs on FTS5 with bm25 ranking. Embedding search runs on
// the vector index, which is rebuilt from the stored vectors at startup.
type Index struct {
	store    *Store
	embedder driven.Embedder
	vectors  driven.VectorIndex
}

func (x *Index) model() string {
	if x.embedder == nil {
		return ""
	}
	return x.embedder.Name()
}

// Upsert inserts or refreshes a document.
// Writing an unchanged document is a no-op.
func (x *Index) Upsert(ctx context.Context, doc domain.Document) error {
	if err := storage.Validate(&doc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stored, fingerprint, err := x.lookup(ctx, doc.Key())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		stored = nil
	case errors.Is(err, domain.ErrIndexCorruption):
		logger.Warn("index: replacing corrupt row: %v", err)
		stored = nil
	case err != nil:
		return err
	}

	merged := storage.Merge(stored, doc)
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

	if err := x.write(ctx, &merged); err != nil {
		return err
	}

	if x.vectors != nil {
		if err := x.vectors.Add(ctx, merged.Key(), merged.Embedding); err != nil {
			logger.Warn("index: vector for %s not updated: %v", merged.Key(), err)
		}
	}
	return nil
}

func (x *Index) write(ctx context.Context, doc *domain.Document) error {
	tags, err := json.Marshal(nonNilTags(doc.Tags))
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}
	comments, err := json.Marshal(nonNilComments(doc.Comments))
	if err != nil {
		return fmt.Errorf("marshalling comments: %w", err)
	}

	var model string
	if len(doc.Embedding) > 0 {
		model = x.model()
	}

	_, err = x.store.db.ExecContext(ctx, `
		INSERT INTO documents (source, id, title, body, tags, accepted_answer, score, resolved,
			comments, url, created_at, updated_at, fingerprint, embedding, embedding_model, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			tags = excluded.tags,
			accepted_answer = excluded.accepted_answer,
			score = excluded.score,
			resolved = excluded.resolved,
			comments = excluded.comments,
			url = excluded.url,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			fingerprint = excluded.fingerprint,
			embedding = excluded.embedding,
			embedding_model = excluded.embedding_model,
			indexed_at = excluded.indexed_at
	`, string(doc.Source), doc.ID, doc.Title, doc.Body, string(tags), doc.AcceptedAnswer,
		doc.Score, boolToInt(doc.Resolved), string(comments), doc.URL,
		formatNullableTime(doc.CreatedAt), formatNullableTime(doc.UpdatedAt),
		storage.Fingerprint(doc), float32SliceToBytes(doc.Embedding), model,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.Key(), err)
	}
	return nil
}

// Get returns one document.
func (x *Index) Get(ctx context.Context, key domain.DocKey) (*domain.Document, error) {
	doc, _, err := x.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// lookup reads a document and its fingerprint.
// A vector from another embedding model is dropped.
func (x *Index) lookup(ctx context.Context, key domain.DocKey) (*domain.Document, string, error) {
	row := x.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`, d.fingerprint
		FROM documents d WHERE d.source = ? AND d.id = ?
	`, string(key.Source), key.ID)

	var fingerprint string
	doc, err := scanDocument(row, x.model(), &fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", domain.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return doc, fingerprint, nil
}

// Search runs a bm25 query over title, body, tags and accepted answer.
// Any term may match. Corrupt rows are skipped.
func (x *Index) Search(ctx context.Context, q domain.IndexQuery) ([]domain.ScoredDocument, error) {
	if q.Source != "" && !q.Source.IsValid() {
		return nil, domain.ErrUnknownSource
	}
	match := matchExpression(q.Terms())
	if match == "" {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := `
		SELECT ` + documentColumns + `, bm25(documents_fts, 3.0, 1.0, 2.0, 1.5) AS relevance
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ?`
	args := []interface{}{match}
	if q.Source != "" {
		query += ` AND d.source = ?`
		args = append(args, string(q.Source))
	}
	query += ` ORDER BY relevance, d.score DESC, d.id LIMIT ?`
	args = append(args, limit)

	rows, err := x.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var results []domain.ScoredDocument //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rank float64
		doc, err := scanDocument(rows, x.model(), &rank)
		if errors.Is(err, domain.ErrIndexCorruption) {
			logger.Warn("index: skipping %v", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, domain.ScoredDocument{Document: *doc, Score: -rank})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
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

	results := make([]domain.ScoredDocument, 0, len(hits))
	for _, hit := range hits {
		doc, _, err := x.lookup(ctx, hit.Key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			continue
		case errors.Is(err, domain.ErrIndexCorruption):
			logger.Warn("index: skipping %v", err)
			continue
		case err != nil:
			return nil, err
		}
		results = append(results, domain.ScoredDocument{Document: *doc, Score: hit.Similarity})
	}
	return results, nil
}

// Count returns the number of documents stored for source.
func (x *Index) Count(ctx context.Context, source domain.Source) (int, error) {
	var n int
	err := x.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE source = ?", string(source)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close is a no-op. The Store owns the connection.
func (x *Index) Close() error {
	return nil
}

type staleVector struct {
	key  domain.DocKey
	text string
}

// loadVectors fills the vector index from the stored embeddings.
func (x *Index) loadVectors(ctx context.Context) error {
	if x.vectors == nil {
		return nil
	}

	rows, err := x.store.db.QueryContext(ctx, `
		SELECT source, id, title, body, accepted_answer, embedding, embedding_model FROM documents
	`)
	if err != nil {
		return fmt.Errorf("loading vectors: %w", err)
	}

	var stale []staleVector
	loaded := 0
	for rows.Next() {
		var doc domain.Document
		var source, model string
		var blob []byte
		if err := rows.Scan(&source, &doc.ID, &doc.Title, &doc.Body, &doc.AcceptedAnswer, &blob, &model); err != nil {
			rows.Close()
			return fmt.Errorf("scanning vector: %w", err)
		}
		doc.Source = domain.Source(source)
		if !doc.Source.IsValid() {
			logger.Warn("index: skipping vector with unknown source %q", source)
			continue
		}
		if model != x.model() || len(blob) == 0 {
			stale = append(stale, staleVector{key: doc.Key(), text: doc.IndexText()})
			continue
		}
		if err := x.vectors.Add(ctx, doc.Key(), bytesToFloat32Slice(blob)); err != nil {
			logger.Warn("index: vector for %s not loaded: %v", doc.Key(), err)
			continue
		}
		loaded++
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating vectors: %w", err)
	}
	rows.Close()

	logger.Debug("index: loaded %d vectors, %d to recompute", loaded, len(stale))
	return x.reembed(ctx, stale)
}

// reembed recomputes vectors written by another model.
// An embedder failure leaves the remaining documents lexical-only.
func (x *Index) reembed(ctx context.Context, stale []staleVector) error {
	if x.embedder == nil || len(stale) == 0 {
		return nil
	}
	for start := 0; start < len(stale); start += reembedBatchSize {
		end := min(start+reembedBatchSize, len(stale))
		batch := stale[start:end]

		texts := make([]string, len(batch))
		for i, s := range batch {
			texts[i] = s.text
		}
		vecs, err := x.embedder.Embed(ctx, texts)
		if err != nil || len(vecs) != len(batch) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Warn("index: recomputing vectors stopped after %d of %d: %v", start, len(stale), err)
			return nil
		}

		for i, s := range batch {
			_, err := x.store.db.ExecContext(ctx,
				"UPDATE documents SET embedding = ?, embedding_model = ? WHERE source = ? AND id = ?",
				float32SliceToBytes(vecs[i]), x.model(), string(s.key.Source), s.key.ID)
			if err != nil {
				return fmt.Errorf("saving vector %s: %w", s.key, err)
			}
			if err := x.vectors.Add(ctx, s.key, vecs[i]); err != nil {
				logger.Warn("index: vector for %s not loaded: %v", s.key, err)
			}
		}
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanDocument reads documentColumns followed by extra destinations.
// Undecodable rows fail with domain.ErrIndexCorruption.
func scanDocument(row rowScanner, model string, extra ...interface{}) (*domain.Document, error) {
	var doc domain.Document
	var source, tags, comments, storedModel string
	var resolved int
	var createdAt, updatedAt sql.NullString
	var blob []byte

	dest := []interface{}{&source, &doc.ID, &doc.Title, &doc.Body, &tags, &doc.AcceptedAnswer,
		&doc.Score, &resolved, &comments, &doc.URL, &createdAt, &updatedAt, &blob, &storedModel}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Source = domain.Source(source)
	key := doc.Key()
	if !doc.Source.IsValid() {
		return nil, fmt.Errorf("%w: %s: unknown source", domain.ErrIndexCorruption, key)
	}
	if err := json.Unmarshal([]byte(tags), &doc.Tags); err != nil {
		return nil, fmt.Errorf("%w: %s: tags: %v", domain.ErrIndexCorruption, key, err)
	}
	if err := json.Unmarshal([]byte(comments), &doc.Comments); err != nil {
		return nil, fmt.Errorf("%w: %s: comments: %v", domain.ErrIndexCorruption, key, err)
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: %s: embedding of %d bytes", domain.ErrIndexCorruption, key, len(blob))
	}

	doc.Resolved = resolved == 1
	doc.CreatedAt = parseNullableTime(createdAt)
	doc.UpdatedAt = parseNullableTime(updatedAt)
	if storedModel == model {
		doc.Embedding = bytesToFloat32Slice(blob)
	}
	return &doc, nil
}

// matchExpression quotes each term as an FTS5 phrase and ORs them.
// Terms without a letter or digit cannot match and are dropped.
func matchExpression(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if strings.IndexFunc(t, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
			continue
		}
		parts = append(parts, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(parts, " OR ")
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nonNilComments(comments []domain.Comment) []domain.Comment {
	if comments == nil {
		return []domain.Comment{}
	}
	return comments
}
