package github

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

const (
	// HeaderRateLimit is the rate limit header.
	HeaderRateLimit = "X-RateLimit-Limit"

	// HeaderRateRemaining is the remaining requests header.
	HeaderRateRemaining = "X-RateLimit-Remaining"

	// HeaderRateReset is the reset timestamp header (Unix seconds).
	HeaderRateReset = "X-RateLimit-Reset"

	// HeaderRateResource names the budget a response was charged to.
	HeaderRateResource = "X-RateLimit-Resource"

	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"
)

// Rate limit resources the governor tracks.
const (
	resourceCore   = "core"
	resourceSearch = "search"
)

// budget is the server's view of our request budget.
type budget struct {
	Resource  string
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// governorKey maps a rate limit resource onto a governor budget.
// ok is false for resources the governor does not track.
func (b budget) governorKey() (domain.Source, bool) {
	switch b.Resource {
	case "", resourceCore:
		return domain.SourceGitHub, true
	case resourceSearch:
		return domain.SourceGitHub.SearchBudget(), true
	default:
		return "", false
	}
}

// parseBudget reads rate limit headers. ok is false when the response
// carries no remaining count.
func parseBudget(resp *http.Response) (b budget, ok bool) {
	if resp == nil {
		return budget{}, false
	}
	b.Resource = resp.Header.Get(HeaderRateResource)

	remaining := resp.Header.Get(HeaderRateRemaining)
	if remaining == "" {
		return budget{}, false
	}
	val, err := strconv.Atoi(remaining)
	if err != nil {
		return budget{}, false
	}
	b.Remaining = val

	if limit := resp.Header.Get(HeaderRateLimit); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			b.Limit = val
		}
	}

	if reset := resp.Header.Get(HeaderRateReset); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			b.ResetAt = time.Unix(val, 0)
		}
	}

	return b, true
}

// rateLimitFromResponse returns a RateLimitError for 429 responses and for
// 403 responses with an exhausted budget, nil otherwise.
func rateLimitFromResponse(resp *http.Response) *RateLimitError {
	if resp == nil {
		return nil
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusForbidden {
		return nil
	}

	b, _ := parseBudget(resp)
	exhausted := resp.Header.Get(HeaderRateRemaining) == "0"
	if resp.StatusCode == http.StatusForbidden && !exhausted && resp.Header.Get(HeaderRetryAfter) == "" {
		return nil
	}

	resetAt := b.ResetAt
	if retryAfter := resp.Header.Get(HeaderRetryAfter); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			resetAt = time.Now().Add(time.Duration(seconds) * time.Second)
		}
	}

	return &RateLimitError{
		ResetAt:   resetAt,
		Remaining: b.Remaining,
		Limit:     b.Limit,
	}
}
