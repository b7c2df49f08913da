package domain

import "time"

// SyncState tracks the refresh progress of one source.
type SyncState struct {
	// Source is the corpus being refreshed.
	Source Source `json:"source"`

	// Watermark is the newest UpdatedAt seen by the last successful refresh.
	Watermark time.Time `json:"watermark"`

	// LastRun is when the last refresh started.
	LastRun time.Time `json:"last_run"`

	// LastSuccess is when the last refresh completed without error.
	LastSuccess time.Time `json:"last_success"`

	// LastError is the message of the last failed refresh, empty on success.
	LastError string `json:"last_error,omitempty"`

	// DocumentsIndexed is the number of documents upserted by the last run.
	DocumentsIndexed int `json:"documents_indexed"`
}

// RefreshResult is the outcome of one refresh run.
type RefreshResult struct {
	Source    Source
	StartedAt time.Time
	EndedAt   time.Time
	Upserted  int
	Skipped   int
	Watermark time.Time
	Err       error
}
