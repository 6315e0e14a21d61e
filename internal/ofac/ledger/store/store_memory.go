package store

import (
	"context"
	"sync"

	"ofactrack/internal/ofac/ledger"
)

// InMemoryStore keeps the ledger state in process memory. Used by tests and
// as the fallback when no backend is configured.
type InMemoryStore struct {
	mu    sync.RWMutex
	state *ledger.State
}

// NewInMemory creates an empty in-memory ledger store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

// Load returns a deep copy of the held state so callers cannot mutate the
// stored version through shared pointers.
func (s *InMemoryStore) Load(ctx context.Context) (*ledger.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return ledger.NewState(), nil
	}
	return s.state.Clone(), nil
}

// Save stores a deep copy of the given state.
func (s *InMemoryStore) Save(ctx context.Context, state *ledger.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
	return nil
}
