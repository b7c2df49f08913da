package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// Ensure SyncStateStore implements the interface.
var _ driven.SyncStateStore = (*SyncStateStore)(nil)

// SyncStateStore is an in-memory implementation of driven.SyncStateStore.
type SyncStateStore struct {
	mu     sync.RWMutex
	states map[domain.Source]domain.SyncState
}

// NewSyncStateStore creates a new in-memory sync state store.
func NewSyncStateStore() *SyncStateStore {
	return &SyncStateStore{
		states: make(map[domain.Source]domain.SyncState),
	}
}

// Save stores or updates sync state.
func (s *SyncStateStore) Save(_ context.Context, state domain.SyncState) error {
	if !state.Source.IsValid() {
		return domain.ErrUnknownSource
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Source] = state
	return nil
}

// Get retrieves sync state for a source.
// Returns nil and no error if the source has never been refreshed.
func (s *SyncStateStore) Get(_ context.Context, source domain.Source) (*domain.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[source]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// List returns the state of every refreshed source, ordered by source.
func (s *SyncStateStore) List(_ context.Context) ([]domain.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make([]domain.SyncState, 0, len(s.states))
	for _, state := range s.states {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Source < states[j].Source })
	return states, nil
}
