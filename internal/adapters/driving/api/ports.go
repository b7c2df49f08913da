package api

import (
	"errors"
	"net/http"

	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
)

var (
	// ErrMissingAnswerService is returned when the answer service is not provided.
	ErrMissingAnswerService = errors.New("api: answer service is required")

	// ErrMissingSearchService is returned when the search service is not provided.
	ErrMissingSearchService = errors.New("api: search service is required")
)

// Ports aggregates the driving ports the HTTP API calls.
type Ports struct {
	Answer   driving.AnswerService
	Search   driving.SearchService
	Feedback driving.FeedbackService
	Refresh  driving.RefreshService

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
// Feedback, Refresh and Metrics are optional; their routes answer 501 without them.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
