package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchService runs plain lexical searches over the index.
type SearchService struct {
	index driven.DocumentIndex
}

// NewSearchService creates a new search service.
func NewSearchService(index driven.DocumentIndex) *SearchService {
	return &SearchService{index: index}
}

// Search returns documents matching the words of query, best first.
func (s *SearchService) Search(
	ctx context.Context, query string, opts driving.SearchOptions,
) ([]domain.ScoredDocument, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	if opts.Source != "" && !opts.Source.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSource, opts.Source)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.ScoredDocument{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	keywords := extractKeywords(words(query), 0)
	if len(keywords) == 0 {
		keywords = words(query)
	}
	logger.Debug("Keywords: %v, source: %q, limit: %d", keywords, opts.Source, limit)

	results, err := s.index.Search(ctx, domain.IndexQuery{
		Source:   opts.Source,
		Keywords: keywords,
		Limit:    limit,
	})
	if err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Info("Final results: %d", len(results))
	if results == nil {
		results = []domain.ScoredDocument{}
	}
	return results, nil
}
