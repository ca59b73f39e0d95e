// Package events publishes loan and listing lifecycle notifications.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	ListingAdded  = "listing.added"
	LoanRequested = "loan.requested"
	LoanApproved  = "loan.approved"
	LoanRejected  = "loan.rejected"
	LoanReturned  = "loan.returned"
	MessageSent   = "message.sent"
)

// Event is one notification. Payload is encoded as JSON by broker publishers.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ActorID    string    `json:"actorId"`
	SubjectID  string    `json:"subjectId"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// MemoryPublisher records published events in order.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Types returns the type of every published event, in order.
func (p *MemoryPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
