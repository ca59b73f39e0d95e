// Package ledger records loan requests and enforces their forward-only
// status lifecycle.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"bookan/pkg/domain"
)

var (
	ErrUnknownLoan       = errors.New("loan not found")
	ErrDuplicateID       = errors.New("loan id already exists")
	ErrInvalidTransition = errors.New("invalid loan status transition")
)

// Ledger is an append-only sequence of loan records. Status is the only
// field updated in place.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]domain.LoanRecord
	order   []string
}

func NewLedger() *Ledger {
	return &Ledger{records: make(map[string]domain.LoanRecord)}
}

// Append adds a new record at the end of the ledger.
func (l *Ledger) Append(rec domain.LoanRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[rec.ID]; exists {
		return ErrDuplicateID
	}
	l.records[rec.ID] = rec
	l.order = append(l.order, rec.ID)
	return nil
}

func (l *Ledger) Get(id string) (domain.LoanRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	return rec, ok
}

// List returns every record in request order.
func (l *Ledger) List() []domain.LoanRecord {
	return l.Select(func(domain.LoanRecord) bool { return true })
}

// Select returns the records accepted by keep, in request order.
func (l *Ledger) Select(keep func(domain.LoanRecord) bool) []domain.LoanRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make([]domain.LoanRecord, 0, len(l.order))
	for _, id := range l.order {
		if rec := l.records[id]; keep(rec) {
			res = append(res, rec)
		}
	}
	return res
}

// Involving returns loans where principalID is the requester or the owner.
func (l *Ledger) Involving(principalID string) []domain.LoanRecord {
	return l.Select(func(rec domain.LoanRecord) bool {
		return rec.RequesterID == principalID || rec.OwnerID == principalID
	})
}

// HasOpen reports whether requesterID already holds a Requested or Active
// loan for bookID.
func (l *Ledger) HasOpen(bookID, requesterID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, id := range l.order {
		rec := l.records[id]
		if rec.BookID == bookID && rec.RequesterID == requesterID && rec.Open() {
			return true
		}
	}
	return false
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Transition moves a loan to status at time at. Completing a loan stamps
// its return time.
func (l *Ledger) Transition(id string, to domain.LoanStatus, at time.Time) (domain.LoanRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return domain.LoanRecord{}, ErrUnknownLoan
	}
	if !CanTransition(rec.Status, to) {
		return rec, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, to)
	}
	rec.Status = to
	rec.UpdatedAt = at
	if to == domain.LoanCompleted {
		returned := at
		rec.ReturnedAt = &returned
	}
	l.records[id] = rec
	return rec, nil
}
