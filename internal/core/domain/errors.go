package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent pipeline failures.
// Infrastructure errors are wrapped around these at adapter boundaries.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownSource indicates a source tag that is not supported.
	ErrUnknownSource = errors.New("unknown source")

	// ErrQueryTooShort indicates the query is empty or below the minimum token count.
	// Surfaced to callers as a request to rephrase.
	ErrQueryTooShort = errors.New("query too short")

	// ErrRateLimited indicates the source budget was exhausted past the bounded wait.
	ErrRateLimited = errors.New("rate limited")

	// ErrSourceUnavailable indicates a source could not be reached after retries.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrIndexCorruption indicates a stored document could not be decoded.
	// Corrupt rows are skipped and logged, never returned on the query path.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrNoRelevantResults indicates no candidate cleared the relevance bar.
	// It maps to a fallback response rather than a failure.
	ErrNoRelevantResults = errors.New("no relevant results")

	// ErrConnectorClosed indicates the connector has been closed.
	ErrConnectorClosed = errors.New("connector closed")

	// ErrGovernorClosed indicates the governor has been torn down.
	ErrGovernorClosed = errors.New("governor closed")
)

// SourceError records which source failed and why.
type SourceError struct {
	Source Source
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError wraps err with its source.
func NewSourceError(source Source, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Source: source, Err: err}
}
