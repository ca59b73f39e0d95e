// Package identity holds the active principal, the registered accounts and
// the codecs used to persist a principal across restarts.
package identity

import (
	"sync"

	"bookan/pkg/domain"
)

// Store holds at most one active principal.
type Store struct {
	mu      sync.RWMutex
	current *domain.Principal
}

func NewStore() *Store {
	return &Store{}
}

// Current returns the active principal, if any.
func (s *Store) Current() (domain.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Principal{}, false
	}
	return *s.current, true
}

// Set replaces the active principal.
func (s *Store) Set(p domain.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &p
}

// Clear removes the active principal. Clearing an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
