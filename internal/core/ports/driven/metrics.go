package driven

import (
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// Metrics records pipeline telemetry.
type Metrics interface {
	ObserveQuery(intent domain.Intent, outcome string, elapsed time.Duration)
	SourceFailure(source domain.Source, reason string)
	CacheLookup(hit bool)
	DocumentsRefreshed(source domain.Source, n int)
	RateLimited(source domain.Source)
}
