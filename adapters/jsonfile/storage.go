package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"listenquest/core"
)

// Store persists every player's progression to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.PlayerID]core.ProgressionState
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.PlayerID]core.ProgressionState{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]core.ProgressionState
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		s.data[core.PlayerID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]core.ProgressionState, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Load(_ context.Context, player core.PlayerID) (core.ProgressionState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	return s.persist()
}
