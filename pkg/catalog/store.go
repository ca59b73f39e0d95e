// Package catalog holds the book listings known to the client and the
// stateless query functions that run over them.
package catalog

import (
	"errors"
	"sync"

	"bookan/pkg/domain"
)

// ErrDuplicateID is returned when adding a listing whose id is already taken.
var ErrDuplicateID = errors.New("listing id already exists")

// Store keeps listings in-process and tracks insertion order, which is
// also the display order.
type Store struct {
	mu       sync.RWMutex
	listings map[string]domain.BookListing
	order    []string
}

func NewStore() *Store {
	return &Store{listings: make(map[string]domain.BookListing)}
}

// Add appends a listing. Ids are immutable, so an existing id is rejected
// rather than replaced.
func (s *Store) Add(b domain.BookListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.listings[b.ID]; exists {
		return ErrDuplicateID
	}
	s.listings[b.ID] = b
	s.order = append(s.order, b.ID)
	return nil
}

// Get retrieves a listing by id.
func (s *Store) Get(id string) (domain.BookListing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.listings[id]
	return b, ok
}

// List returns a snapshot of every listing in insertion order.
func (s *Store) List() []domain.BookListing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.BookListing, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, s.listings[id])
	}
	return res
}

// ListByOwner returns listings whose owner snapshot has ownerID.
func (s *Store) ListByOwner(ownerID string) []domain.BookListing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.BookListing, 0)
	for _, id := range s.order {
		if b := s.listings[id]; b.Owner.ID == ownerID {
			res = append(res, b)
		}
	}
	return res
}

// SetStatus updates availability and returns the updated listing.
func (s *Store) SetStatus(id string, status domain.Availability) (domain.BookListing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.listings[id]
	if !ok {
		return domain.BookListing{}, false
	}
	b.Status = status
	s.listings[id] = b
	return b, true
}

// Len returns the number of listings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
