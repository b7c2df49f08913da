package services

import (
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// Query outcomes reported to metrics.
const (
	outcomeAnswered    = "answered"
	outcomeFallback    = "fallback"
	outcomeCached      = "cached"
	outcomeTooShort    = "too_short"
	outcomeUnavailable = "unavailable"
	outcomeCancelled   = "cancelled"
	outcomeError       = "error"
)

// nopMetrics discards everything.
type nopMetrics struct{}

func (nopMetrics) ObserveQuery(domain.Intent, string, time.Duration) {}
func (nopMetrics) SourceFailure(domain.Source, string)               {}
func (nopMetrics) CacheLookup(bool)                                  {}
func (nopMetrics) DocumentsRefreshed(domain.Source, int)             {}
func (nopMetrics) RateLimited(domain.Source)                         {}

func metricsOrNop(m driven.Metrics) driven.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
