package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// syncStateStore implements driven.SyncStateStore.
type syncStateStore struct {
	store *Store
}

var _ driven.SyncStateStore = (*syncStateStore)(nil)

// Save stores or updates sync state.
func (s *syncStateStore) Save(ctx context.Context, state domain.SyncState) error {
	if !state.Source.IsValid() {
		return domain.ErrUnknownSource
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_state (source, watermark, last_run, last_success, last_error, documents_indexed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			watermark = excluded.watermark,
			last_run = excluded.last_run,
			last_success = excluded.last_success,
			last_error = excluded.last_error,
			documents_indexed = excluded.documents_indexed
	`, string(state.Source), formatNullableTime(state.Watermark), formatNullableTime(state.LastRun),
		formatNullableTime(state.LastSuccess), nullString(state.LastError), state.DocumentsIndexed)

	if err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}
	return nil
}

// Get retrieves sync state for a source.
// Returns nil and no error if the source has never been refreshed.
func (s *syncStateStore) Get(ctx context.Context, source domain.Source) (*domain.SyncState, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT source, watermark, last_run, last_success, last_error, documents_indexed
		FROM sync_state WHERE source = ?
	`, string(source))

	state, err := scanSyncState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// List returns the state of every refreshed source, ordered by source.
func (s *syncStateStore) List(ctx context.Context) ([]domain.SyncState, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source, watermark, last_run, last_success, last_error, documents_indexed
		FROM sync_state ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sync state: %w", err)
	}
	defer rows.Close()

	var states []domain.SyncState //nolint:prealloc // size unknown from query
	for rows.Next() {
		state, err := scanSyncState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync state: %w", err)
	}
	return states, nil
}

func scanSyncState(row rowScanner) (*domain.SyncState, error) {
	var state domain.SyncState
	var source string
	var watermark, lastRun, lastSuccess, lastError sql.NullString

	if err := row.Scan(&source, &watermark, &lastRun, &lastSuccess, &lastError, &state.DocumentsIndexed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning sync state: %w", err)
	}

	state.Source = domain.Source(source)
	state.Watermark = parseNullableTime(watermark)
	state.LastRun = parseNullableTime(lastRun)
	state.LastSuccess = parseNullableTime(lastSuccess)
	if lastError.Valid {
		state.LastError = lastError.String
	}
	return &state, nil
}
