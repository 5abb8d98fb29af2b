package config

import (
	"sync"
)

// Store hands consistent configuration copies to the cycle and applies
// validated updates from the API and console.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Snapshot returns a copy. The cycle takes one per fix so a mid-cycle
// update cannot mix two tunings.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	return cfg
}

// Update applies fn to a copy and swaps it in only when the result still
// validates, so the live configuration is never left half-edited.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	s.cfg = next
	return nil
}
