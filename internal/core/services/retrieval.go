package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// maxLookupTerms caps the terms sent to a connector for live lookup.
const maxLookupTerms = 6

// Failure reasons reported to metrics.
const (
	reasonTimeout     = "timeout"
	reasonRateLimited = "rate_limited"
	reasonUnavailable = "unavailable"
)

// RetrievalService fetches, scores and ranks candidates from every source.
type RetrievalService struct {
	index      driven.DocumentIndex
	connectors map[domain.Source]driven.SourceConnector
	settings   driven.RankingSettings
	metrics    driven.Metrics
}

// NewRetrievalService creates the service.
// connectors are used for live lookup and may be empty.
func NewRetrievalService(
	index driven.DocumentIndex,
	connectors []driven.SourceConnector,
	settings driven.RankingSettings,
	metrics driven.Metrics,
) *RetrievalService {
	bySource := make(map[domain.Source]driven.SourceConnector, len(connectors))
	for _, c := range connectors {
		bySource[c.Source()] = c
	}
	if settings == nil {
		settings = domain.DefaultRankingConfig()
	}
	return &RetrievalService{
		index:      index,
		connectors: bySource,
		settings:   settings,
		metrics:    metricsOrNop(metrics),
	}
}

// sourceHits is what one source contributed to a query.
type sourceHits struct {
	lexical  []domain.ScoredDocument
	semantic []domain.ScoredDocument
	err      error
}

// Retrieve searches both sources in parallel and returns ranked candidates.
// A failing source is reported through PartialCoverage. Only when every source
// fails does Retrieve return an error, wrapping domain.ErrSourceUnavailable.
func (s *RetrievalService) Retrieve(ctx context.Context, rep *domain.QueryRepresentation) (*domain.RetrievalResult, error) {
	cfg := s.settings.Ranking()
	sources := domain.AllSources()
	hits := make([]sourceHits, len(sources))

	var g errgroup.Group
	for i, source := range sources {
		g.Go(func() error {
			hits[i] = s.searchSource(ctx, source, rep, cfg)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &domain.RetrievalResult{}
	var errs []error
	for i, source := range sources {
		if hits[i].err == nil {
			continue
		}
		reason := failureReason(hits[i].err)
		logger.Warn("retrieve: %s unavailable (%s): %v", source, reason, hits[i].err)
		s.metrics.SourceFailure(source, reason)
		result.FailedSources = append(result.FailedSources, source)
		errs = append(errs, domain.NewSourceError(source, hits[i].err))
	}
	if len(result.FailedSources) == len(sources) {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, errors.Join(errs...))
	}
	result.PartialCoverage = len(result.FailedSources) > 0

	result.Candidates = s.rank(hits, rep.Topics(), cfg)
	logger.Debug("retrieve: %d candidates, partial=%t", len(result.Candidates), result.PartialCoverage)
	return result, nil
}

// searchSource runs live lookup, lexical and semantic search for one source
// under the per-source timeout.
func (s *RetrievalService) searchSource(
	ctx context.Context,
	source domain.Source,
	rep *domain.QueryRepresentation,
	cfg domain.RankingConfig,
) sourceHits {
	sctx, cancel := context.WithTimeout(ctx, cfg.SourceTimeout)
	defer cancel()

	if conn, ok := s.connectors[source]; ok && cfg.LiveLookup {
		if err := s.liveLookup(sctx, conn, rep); err != nil {
			return sourceHits{err: sourceErr(sctx, err)}
		}
	}

	var out sourceHits
	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		docs, err := s.index.Search(gctx, domain.IndexQuery{
			Source:   source,
			Keywords: rep.Keywords,
			Entities: rep.Entities,
			Limit:    cfg.CandidateLimit,
		})
		out.lexical = docs
		return err
	})
	if len(rep.Embedding) > 0 {
		g.Go(func() error {
			docs, err := s.index.EmbeddingSearch(gctx, source, rep.Embedding, cfg.CandidateLimit)
			out.semantic = docs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return sourceHits{err: sourceErr(sctx, err)}
	}
	return out
}

// liveLookup asks the connector for matching documents and upserts them.
func (s *RetrievalService) liveLookup(ctx context.Context, conn driven.SourceConnector, rep *domain.QueryRepresentation) error {
	terms := rep.Topics()
	if len(terms) > maxLookupTerms {
		terms = terms[:maxLookupTerms]
	}
	if len(terms) == 0 {
		return nil
	}

	docs, errs := conn.FetchByQuery(ctx, terms)
	n, failed, err := consume(ctx, docs, errs, func(doc domain.Document) error {
		if upErr := s.index.Upsert(ctx, doc); upErr != nil {
			logger.Debug("retrieve: upsert %s: %v", doc.Key(), upErr)
			return upErr
		}
		return nil
	})
	logger.Debug("retrieve: live lookup %s: %d upserted, %d failed", conn.Source(), n, failed)
	return err
}

// sourceErr maps a per-source failure onto the domain taxonomy.
// A per-source deadline becomes ErrSourceUnavailable.
func sourceErr(sctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, domain.ErrSourceUnavailable):
		return err
	case errors.Is(sctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out: %w", domain.ErrSourceUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return reasonRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	default:
		return reasonUnavailable
	}
}

// candidate accumulates the scores of one document across methods.
type candidate struct {
	doc      domain.Document
	lexical  float64
	semantic float64
}

// rank merges, scores, sorts and filters the hits of every source.
// The lexical score is the share of query terms a lexical hit contains, so it
// sits on the same absolute scale for every query and source.
func (s *RetrievalService) rank(hits []sourceHits, terms []string, cfg domain.RankingConfig) []domain.RankedCandidate {
	merged := make(map[domain.DocKey]*candidate)
	var order []domain.DocKey
	get := func(doc *domain.Document) *candidate {
		key := doc.Key()
		c, ok := merged[key]
		if !ok {
			c = &candidate{doc: *doc}
			merged[key] = c
			order = append(order, key)
		}
		return c
	}

	query := queryStems(terms)
	for i := range hits {
		if hits[i].err != nil {
			continue
		}
		for j := range hits[i].lexical {
			hit := &hits[i].lexical[j]
			get(&hit.Document).lexical = termCoverage(query, &hit.Document)
		}
		for j := range hits[i].semantic {
			hit := &hits[i].semantic[j]
			sim := clamp01(hit.Score)
			if sim < cfg.SemanticFloor {
				continue
			}
			c := get(&hit.Document)
			if sim > c.semantic {
				c.semantic = sim
			}
		}
	}

	ranked := make([]domain.RankedCandidate, 0, len(merged))
	for _, key := range order {
		c := merged[key]
		if c.lexical < cfg.MatchFloor && c.semantic < cfg.MatchFloor {
			continue
		}
		trust := ComputeTrust(&c.doc)
		ranked = append(ranked, domain.RankedCandidate{
			Document:      c.doc,
			LexicalScore:  c.lexical,
			SemanticScore: c.semantic,
			TrustScore:    trust,
			FinalScore:    finalScore(cfg, c.lexical, c.semantic, trust),
		})
	}
	domain.SortCandidates(ranked)

	kept := ranked[:0]
	for _, rc := range ranked {
		if rc.FinalScore >= cfg.MinRelevance {
			kept = append(kept, rc)
		}
	}
	return kept
}

// queryStems turns query terms into stemmed word groups, one per distinct term.
// A multi-word term such as "permission denied" matches only when every word does.
func queryStems(terms []string) [][]string {
	seen := make(map[string]bool, len(terms))
	groups := make([][]string, 0, len(terms))
	for _, term := range terms {
		ws := words(term)
		if len(ws) == 0 {
			continue
		}
		for i, w := range ws {
			ws[i] = stem(w)
		}
		key := strings.Join(ws, " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		groups = append(groups, ws)
	}
	return groups
}

// termCoverage is the share of query term groups found in the document.
func termCoverage(query [][]string, doc *domain.Document) float64 {
	if len(query) == 0 {
		return 0
	}
	vocab := documentStems(doc)
	matched := 0
	for _, group := range query {
		all := true
		for _, w := range group {
			if !vocab[w] {
				all = false
				break
			}
		}
		if all {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

// documentStems is the stemmed vocabulary of the indexed text and tags.
// Dotted and hyphenated words also contribute their parts.
func documentStems(doc *domain.Document) map[string]bool {
	vocab := make(map[string]bool)
	for _, w := range words(doc.IndexText() + " " + strings.Join(doc.Tags, " ")) {
		vocab[stem(w)] = true
		if strings.ContainsAny(w, ".-") {
			for _, part := range strings.FieldsFunc(w, func(r rune) bool { return r == '.' || r == '-' }) {
				vocab[stem(part)] = true
			}
		}
	}
	return vocab
}

// finalScore is the weighted sum of the three component scores.
func finalScore(cfg domain.RankingConfig, lexical, semantic, trust float64) float64 {
	return cfg.LexicalWeight*lexical + cfg.SemanticWeight*semantic + cfg.TrustWeight*trust
}
