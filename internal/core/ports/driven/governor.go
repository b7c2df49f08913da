package driven

import (
	"context"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// RateGovernor is the single point of truth for per-source request budgets.
type RateGovernor interface {
	// Acquire takes one request token for source.
	// It blocks up to the configured bound, then fails with domain.ErrRateLimited.
	Acquire(ctx context.Context, source domain.Source) error

	// Observe records the budget reported by the upstream API.
	Observe(source domain.Source, remaining int, resetAt time.Time)

	// Budget returns the current view of a source budget.
	Budget(source domain.Source) domain.BudgetStatus
}

// ResponseCache memoises responses by normalised query key.
type ResponseCache interface {
	// GetCached returns a live entry for key.
	GetCached(key string) (domain.Response, bool)

	// Put stores resp under key for ttl. A zero ttl uses the default.
	Put(key string, resp domain.Response, ttl time.Duration)
}
