package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// Ensure RefreshService implements the interface.
var _ driving.RefreshService = (*RefreshService)(nil)

// DefaultRefreshTimeout bounds one refresh run.
const DefaultRefreshTimeout = 10 * time.Minute

// RefreshService pulls recently updated documents into the index.
// Each source refreshes independently; one failing never touches another's data.
type RefreshService struct {
	connectors map[domain.Source]driven.SourceConnector
	order      []domain.Source
	index      driven.DocumentIndex
	syncStore  driven.SyncStateStore
	metrics    driven.Metrics
	timeout    time.Duration

	inflight singleflight.Group

	mu      sync.Mutex
	flights map[domain.Source]*flight
}

// flight is the context shared by every caller waiting on one source.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// RefreshOption configures a RefreshService.
type RefreshOption func(*RefreshService)

// WithRefreshTimeout bounds one refresh run.
func WithRefreshTimeout(d time.Duration) RefreshOption {
	return func(s *RefreshService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRefreshService creates a refresh service over the given connectors.
func NewRefreshService(
	connectors []driven.SourceConnector,
	index driven.DocumentIndex,
	syncStore driven.SyncStateStore,
	metrics driven.Metrics,
	opts ...RefreshOption,
) *RefreshService {
	s := &RefreshService{
		connectors: make(map[domain.Source]driven.SourceConnector, len(connectors)),
		index:      index,
		syncStore:  syncStore,
		metrics:    metricsOrNop(metrics),
		timeout:    DefaultRefreshTimeout,
		flights:    make(map[domain.Source]*flight),
	}
	for _, c := range connectors {
		if _, dup := s.connectors[c.Source()]; dup {
			continue
		}
		s.connectors[c.Source()] = c
		s.order = append(s.order, c.Source())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sources lists the configured sources.
func (s *RefreshService) Sources() []domain.Source {
	return append([]domain.Source(nil), s.order...)
}

// RefreshSource refreshes one source from its watermark.
// Concurrent calls for the same source share a single run. A caller that
// gives up returns ctx.Err at once; the run keeps going for the others and
// is cancelled only when the last caller has left.
func (s *RefreshService) RefreshSource(ctx context.Context, source domain.Source) (domain.RefreshResult, error) {
	if _, ok := s.connectors[source]; !ok {
		return domain.RefreshResult{Source: source}, fmt.Errorf("%w: %q is not configured", domain.ErrUnknownSource, source)
	}

	runCtx := s.join(ctx, source)
	ch := s.inflight.DoChan(string(source), func() (interface{}, error) {
		return s.refresh(runCtx, source), nil
	})

	var r singleflight.Result
	select {
	case r = <-ch:
		s.leave(source)
	case <-ctx.Done():
		if !s.leave(source) {
			return domain.RefreshResult{Source: source}, ctx.Err()
		}
		// Last caller out cancelled the run; let it save its state first.
		r = <-ch
	}

	result, _ := r.Val.(domain.RefreshResult)
	if r.Shared {
		logger.Debug("refresh: joined in-flight run for %s", source)
	}
	return result, result.Err
}

// join registers a caller for source and returns the shared run context.
// The context outlives any single caller and carries the refresh timeout.
func (s *RefreshService) join(ctx context.Context, source domain.Source) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flights[source]
	if !ok {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		f = &flight{ctx: runCtx, cancel: cancel}
		s.flights[source] = f
	}
	f.waiters++
	return f.ctx
}

// leave unregisters a caller. It reports whether it was the last one, in
// which case the shared context is cancelled.
func (s *RefreshService) leave(source domain.Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flights[source]
	if !ok {
		return false
	}
	f.waiters--
	if f.waiters > 0 {
		return false
	}
	f.cancel()
	delete(s.flights, source)
	return true
}

// RefreshAll refreshes every configured source in parallel.
// The returned error joins the per-source failures.
func (s *RefreshService) RefreshAll(ctx context.Context) ([]domain.RefreshResult, error) {
	results := make([]domain.RefreshResult, len(s.order))

	var g errgroup.Group
	for i, source := range s.order {
		g.Go(func() error {
			results[i], _ = s.RefreshSource(ctx, source)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, domain.NewSourceError(r.Source, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// refresh runs one fetch-and-upsert pass.
// The watermark only advances when the whole stream succeeded, and never
// past a document whose upsert failed for a reason other than bad input.
func (s *RefreshService) refresh(ctx context.Context, source domain.Source) domain.RefreshResult {
	result := domain.RefreshResult{Source: source, StartedAt: time.Now()}
	logger.Info("Refreshing %s", source.Label())

	state, err := s.syncStore.Get(ctx, source)
	if err != nil {
		result.Err = fmt.Errorf("get sync state: %w", err)
		result.EndedAt = time.Now()
		return result
	}
	if state == nil {
		state = &domain.SyncState{Source: source}
	}
	since := state.Watermark
	watermark := since

	// held is the oldest document that failed to index for a reason worth
	// retrying. The watermark never passes it.
	var held time.Time
	var retry int

	docs, errs := s.connectors[source].FetchRecent(ctx, since)
	upserted, skipped, fetchErr := consume(ctx, docs, errs, func(doc domain.Document) error {
		if doc.Source != source {
			logger.Warn("refresh: %s connector returned a %s document, skipping", source, doc.Source)
			return domain.ErrUnknownSource
		}
		if err := s.index.Upsert(ctx, doc); err != nil {
			logger.Debug("refresh: upsert %s: %v", doc.Key(), err)
			if !errors.Is(err, domain.ErrInvalidInput) {
				retry++
				if held.IsZero() || doc.UpdatedAt.Before(held) {
					held = doc.UpdatedAt
				}
			}
			return err
		}
		if doc.UpdatedAt.After(watermark) {
			watermark = doc.UpdatedAt
		}
		return nil
	})

	result.Upserted, result.Skipped = upserted, skipped
	result.EndedAt = time.Now()
	s.metrics.DocumentsRefreshed(source, upserted)

	state.LastRun = result.StartedAt
	if fetchErr != nil {
		result.Err = fetchErr
		result.Watermark = since
		state.LastError = fetchErr.Error()
		logger.Warn("Refresh of %s failed after %d documents: %v", source.Label(), upserted, fetchErr)
	} else {
		if retry > 0 {
			watermark = holdWatermark(since, watermark, held)
		}
		result.Watermark = watermark
		state.Watermark = watermark
		state.LastSuccess = result.EndedAt
		state.LastError = ""
		if retry > 0 {
			state.LastError = fmt.Sprintf("%d documents failed to index, next refresh resumes from %s",
				retry, watermark.UTC().Format(time.RFC3339))
			logger.Warn("Refresh of %s: %s", source.Label(), state.LastError)
		}
		logger.Info("Refreshed %s: %d upserted, %d skipped", source.Label(), upserted, skipped)
	}

	if n, err := s.index.Count(ctx, source); err == nil {
		state.DocumentsIndexed = n
	}

	// The state write must survive a cancelled refresh so the failure is visible.
	if err := s.syncStore.Save(context.WithoutCancel(ctx), *state); err != nil {
		logger.Warn("refresh: save sync state for %s: %v", source, err)
		if result.Err == nil {
			result.Err = fmt.Errorf("save sync state: %w", err)
		}
	}
	return result
}

// holdWatermark caps watermark one second before held, the oldest document
// that must be fetched again. Connectors filter at second precision.
// The result never drops below since.
func holdWatermark(since, watermark, held time.Time) time.Time {
	limit := held.Add(-time.Second)
	if watermark.After(limit) {
		watermark = limit
	}
	if watermark.Before(since) {
		watermark = since
	}
	return watermark
}
