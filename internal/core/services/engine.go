package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// Ensure Engine implements the interface.
var _ driving.AnswerService = (*Engine)(nil)

// Understander produces a query representation from raw text.
type Understander interface {
	Understand(ctx context.Context, raw string) (*domain.QueryRepresentation, error)
}

// Retriever produces ranked candidates for a query representation.
type Retriever interface {
	Retrieve(ctx context.Context, rep *domain.QueryRepresentation) (*domain.RetrievalResult, error)
}

// Engine runs the answer pipeline: understand, cache lookup, retrieve,
// synthesize, cache store and interaction logging.
type Engine struct {
	understander Understander
	retriever    Retriever
	synthesizer  *Synthesizer
	cache        driven.ResponseCache
	interactions driven.InteractionStore
	metrics      driven.Metrics
	cacheTTL     time.Duration
}

// EngineOption configures optional Engine collaborators.
type EngineOption func(*Engine)

// WithInteractionStore records every answered query.
func WithInteractionStore(store driven.InteractionStore) EngineOption {
	return func(e *Engine) { e.interactions = store }
}

// WithMetrics records pipeline telemetry.
func WithMetrics(m driven.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = metricsOrNop(m) }
}

// WithCacheTTL overrides the cache default TTL for stored responses.
func WithCacheTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.cacheTTL = ttl }
}

// NewEngine creates the answer pipeline. cache may be nil to disable caching.
func NewEngine(
	understander Understander,
	retriever Retriever,
	synthesizer *Synthesizer,
	cache driven.ResponseCache,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		understander: understander,
		retriever:    retriever,
		synthesizer:  synthesizer,
		cache:        cache,
		metrics:      nopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ask answers one question.
func (e *Engine) Ask(ctx context.Context, text string) (*domain.Answer, error) {
	start := time.Now()
	logger.Section("Ask")
	logger.Debug("Query: %q", text)

	rep, err := e.understander.Understand(ctx, text)
	if err != nil {
		e.metrics.ObserveQuery(domain.IntentUnclassified, outcomeFor(err), time.Since(start))
		return nil, err
	}

	key := rep.CacheKey()
	if e.cache != nil {
		if resp, ok := e.cache.GetCached(key); ok {
			e.metrics.CacheLookup(true)
			logger.Debug("Cache hit: %s", key)
			answer := e.finish(ctx, rep, resp, true, start)
			e.metrics.ObserveQuery(rep.Intent, outcomeCached, answer.ElapsedTime)
			return answer, nil
		}
		e.metrics.CacheLookup(false)
	}

	result, err := e.retriever.Retrieve(ctx, rep)
	if err != nil {
		e.metrics.ObserveQuery(rep.Intent, outcomeFor(err), time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	resp := e.synthesizer.Synthesize(rep, result)

	// Partial or abandoned responses are never cached.
	if e.cache != nil && !resp.PartialCoverage && ctx.Err() == nil {
		e.cache.Put(key, resp, e.cacheTTL)
	}

	answer := e.finish(ctx, rep, resp, false, start)
	outcome := outcomeAnswered
	if resp.FallbackUsed {
		outcome = outcomeFallback
	}
	e.metrics.ObserveQuery(rep.Intent, outcome, answer.ElapsedTime)
	logger.Info("Answered %s query in %s (confidence %.2f, fallback %t, cited %d)",
		rep.Intent, answer.ElapsedTime.Round(time.Millisecond), resp.Confidence, resp.FallbackUsed, len(resp.CitedDocuments))
	return answer, nil
}

// finish logs the interaction and wraps the response.
func (e *Engine) finish(
	ctx context.Context,
	rep *domain.QueryRepresentation,
	resp domain.Response,
	cached bool,
	start time.Time,
) *domain.Answer {
	answer := &domain.Answer{
		Response:      resp,
		InteractionID: uuid.NewString(),
		Intent:        rep.Intent,
		Cached:        cached,
	}

	if e.interactions != nil {
		err := e.interactions.RecordInteraction(context.WithoutCancel(ctx), domain.Interaction{
			ID:             answer.InteractionID,
			Query:          rep.Normalized,
			Intent:         rep.Intent,
			Confidence:     resp.Confidence,
			FallbackUsed:   resp.FallbackUsed,
			Cached:         cached,
			CitedDocuments: resp.CitedDocuments,
			Topics:         rep.Topics(),
			CreatedAt:      time.Now(),
		})
		if err != nil {
			logger.Warn("Failed to record interaction: %v", err)
			answer.InteractionID = ""
		}
	}

	answer.ElapsedTime = time.Since(start)
	return answer
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrQueryTooShort):
		return outcomeTooShort
	case errors.Is(err, domain.ErrSourceUnavailable):
		return outcomeUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCancelled
	default:
		return outcomeError
	}
}
