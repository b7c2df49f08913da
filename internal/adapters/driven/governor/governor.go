package governor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// Ensure Governor implements the interfaces.
var (
	_ driven.RateGovernor  = (*Governor)(nil)
	_ driven.ResponseCache = (*Governor)(nil)
)

const (
	// DefaultMaxWait bounds how long Acquire blocks.
	DefaultMaxWait = time.Second

	// DefaultTTL is the response cache lifetime.
	DefaultTTL = 15 * time.Minute

	// janitorInterval is how often expired cache entries are swept.
	janitorInterval = time.Minute
)

// Quota is a request budget for one source.
type Quota struct {
	// Requests allowed per Window.
	Requests int

	// Window is the quota period.
	Window time.Duration

	// Burst is the token bucket depth.
	Burst int
}

// Config configures a Governor.
type Config struct {
	Quotas          map[domain.Source]Quota
	MaxWait         time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int
}

// bucket is the budget state of one source.
type bucket struct {
	limiter   *rate.Limiter
	limit     int
	remaining int
	resetAt   time.Time
	window    time.Duration
}

// Governor throttles connector calls and memoises responses.
type Governor struct {
	mu      sync.Mutex
	buckets map[domain.Source]*bucket
	maxWait time.Duration
	closed  bool

	cache   *responseCache
	stopCh  chan struct{}
	wg      sync.WaitGroup
	metrics driven.Metrics
	now     func() time.Time
}

// New creates a governor and starts its cache janitor.
func New(cfg Config) *Governor {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultTTL
	}

	g := &Governor{
		buckets: make(map[domain.Source]*bucket),
		maxWait: cfg.MaxWait,
		cache:   newResponseCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	for source, q := range cfg.Quotas {
		g.buckets[source] = newBucket(q)
	}

	g.wg.Add(1)
	go g.janitor()
	return g
}

func newBucket(q Quota) *bucket {
	if q.Requests <= 0 {
		q.Requests = 1
	}
	if q.Window <= 0 {
		q.Window = time.Hour
	}
	if q.Burst <= 0 {
		q.Burst = 1
	}
	every := q.Window / time.Duration(q.Requests)
	return &bucket{
		limiter:   rate.NewLimiter(rate.Every(every), q.Burst),
		limit:     q.Requests,
		remaining: q.Requests,
		window:    q.Window,
	}
}

// refill restores the full budget once the window has passed.
func (b *bucket) refill(now time.Time) {
	if !b.resetAt.IsZero() && !now.Before(b.resetAt) {
		b.remaining = b.limit
		b.resetAt = time.Time{}
	}
}

// SetMetrics attaches a metrics recorder.
func (g *Governor) SetMetrics(m driven.Metrics) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.metrics = m
}

// Acquire takes one request token for source.
// It waits at most MaxWait (or until ctx ends) and then fails with domain.ErrRateLimited.
func (g *Governor) Acquire(ctx context.Context, source domain.Source) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return domain.ErrGovernorClosed
	}
	b, ok := g.buckets[source]
	if !ok {
		// Unconfigured sources are unthrottled.
		g.mu.Unlock()
		return nil
	}

	// 1. Window budget, fed by upstream headers when the API reports them.
	now := g.now()
	b.refill(now)
	var waitReset time.Duration
	if b.remaining <= 0 {
		waitReset = b.resetAt.Sub(now)
		if b.resetAt.IsZero() || waitReset > g.maxWait {
			g.mu.Unlock()
			return g.rateLimited(source, fmt.Errorf("budget exhausted until %s", b.resetAt.Format(time.RFC3339)))
		}
	}
	switch {
	case waitReset > 0:
		// The caller sleeps past the reset, so it spends from the fresh window.
		b.remaining = b.limit
		b.resetAt = now.Add(waitReset + b.window)
	case b.resetAt.IsZero():
		// The first spend opens a local window so the budget always comes back.
		b.resetAt = now.Add(b.window)
	}
	b.remaining--
	limiter := b.limiter
	g.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	if waitReset > 0 {
		select {
		case <-waitCtx.Done():
			g.refund(source)
			return g.waitError(ctx, source, waitCtx.Err())
		case <-time.After(waitReset):
		}
	}

	// 2. Proactive token bucket. Wait fails fast if the deadline cannot be met.
	if err := limiter.Wait(waitCtx); err != nil {
		g.refund(source)
		return g.waitError(ctx, source, err)
	}
	return nil
}

func (g *Governor) waitError(ctx context.Context, source domain.Source, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return g.rateLimited(source, err)
}

func (g *Governor) rateLimited(source domain.Source, cause error) error {
	logger.Warn("governor: %s rate limited: %v", source, cause)
	g.mu.Lock()
	m := g.metrics
	g.mu.Unlock()
	if m != nil {
		m.RateLimited(source)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrRateLimited, source, cause)
}

func (g *Governor) refund(source domain.Source) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.buckets[source]; ok && b.remaining < b.limit {
		b.remaining++
	}
}

// Observe records the budget reported by the upstream API.
func (g *Governor) Observe(source domain.Source, remaining int, resetAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.buckets[source]
	if !ok {
		return
	}
	if remaining >= 0 {
		b.remaining = remaining
		if remaining > b.limit {
			b.limit = remaining
		}
	}
	if !resetAt.IsZero() {
		b.resetAt = resetAt
	} else if remaining <= 0 && b.resetAt.IsZero() {
		b.resetAt = g.now().Add(b.window)
	}
}

// Budget returns the current view of a source budget.
func (g *Governor) Budget(source domain.Source) domain.BudgetStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	status := domain.BudgetStatus{Source: source}
	if b, ok := g.buckets[source]; ok {
		b.refill(g.now())
		status.Remaining = b.remaining
		status.Limit = b.limit
		status.ResetAt = b.resetAt
	}
	return status
}

// GetCached returns a live cache entry.
func (g *Governor) GetCached(key string) (domain.Response, bool) {
	return g.cache.get(key, g.now())
}

// Put stores a response. A zero ttl uses the configured default.
func (g *Governor) Put(key string, resp domain.Response, ttl time.Duration) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return
	}
	g.cache.put(key, resp, ttl, g.now())
}

// CacheLen returns the number of cached entries, including expired ones not yet swept.
func (g *Governor) CacheLen() int {
	return g.cache.len()
}

// Close stops the janitor and clears the cache. It is safe to call twice.
func (g *Governor) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	close(g.stopCh)
	g.mu.Unlock()

	g.wg.Wait()
	g.cache.clear()
	return nil
}

func (g *Governor) janitor() {
	defer g.wg.Done()
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			if n := g.cache.sweep(g.now()); n > 0 {
				logger.Debug("governor: swept %d expired cache entries", n)
			}
		}
	}
}

// IsRateLimited reports whether err came from an exhausted budget.
func IsRateLimited(err error) bool {
	return errors.Is(err, domain.ErrRateLimited)
}
