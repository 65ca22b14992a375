package memory

import (
	"context"
	"sync"

	"listenquest/core"
)

// Store is a concurrent in-memory Storage implementation. Suitable for tests
// and single-process demos.
type Store struct {
	mu   sync.RWMutex
	data map[core.PlayerID]core.ProgressionState
}

func New() *Store {
	return &Store{data: map[core.PlayerID]core.ProgressionState{}}
}

func (s *Store) Load(_ context.Context, player core.PlayerID) (core.ProgressionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[player]
	if !ok {
		return core.ProgressionState{}, false, nil
	}
	return st.Clone(), true, nil
}

func (s *Store) Save(_ context.Context, player core.PlayerID, state core.ProgressionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[player] = state.Clone()
	return nil
}

var _ interface {
	Load(context.Context, core.PlayerID) (core.ProgressionState, bool, error)
	Save(context.Context, core.PlayerID, core.ProgressionState) error
} = (*Store)(nil)
