package stackoverflow

import (
	"errors"
	"fmt"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// StackExchange error ids. See https://api.stackexchange.com/docs/error-handling.
const (
	errIDInternalError      = 500
	errIDThrottleViolation  = 502
	errIDTemporarilyUnavail = 503
)

// APIError is an error envelope returned by the StackExchange API.
type APIError struct {
	StatusCode int
	ID         int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("stackoverflow: API error %d %s: %s", e.ID, e.Name, e.Message)
	}
	return fmt.Sprintf("stackoverflow: HTTP %d", e.StatusCode)
}

// Unwrap lets throttle violations match domain.ErrRateLimited.
func (e *APIError) Unwrap() error {
	if e.ID == errIDThrottleViolation {
		return domain.ErrRateLimited
	}
	return nil
}

// Temporary reports whether the request may succeed if retried.
func (e *APIError) Temporary() bool {
	switch e.ID {
	case errIDInternalError, errIDTemporarilyUnavail:
		return true
	case 0:
		return e.StatusCode >= 500 || e.StatusCode == 408
	default:
		return false
	}
}

// IsThrottled checks if the error is a throttle violation.
func IsThrottled(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ID == errIDThrottleViolation
}
