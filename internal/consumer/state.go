package consumer

import (
	"context"
	"sync"
	"time"
)

// State is what a consumer persists between sessions for one artifact URL.
type State struct {
	LastFetchedAt time.Time
	Body          []byte
}

// StateStore persists consumer state keyed by artifact URL.
type StateStore interface {
	// Load returns the saved state. found is false when nothing was saved.
	Load(ctx context.Context, key string) (st State, found bool, err error)
	Save(ctx context.Context, key string, st State) error
}

// MemoryStore is a StateStore that lives for the process only.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[key]
	return st, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = st
	return nil
}
