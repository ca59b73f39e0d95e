// Package messaging keeps borrower/lender conversations with per-participant
// unread counters.
package messaging

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"bookan/pkg/domain"
)

var (
	ErrUnknownConversation = errors.New("conversation not found")
	ErrNotParticipant      = errors.New("principal is not a participant")
)

// Store keeps conversations in-process.
type Store struct {
	mu    sync.RWMutex
	convs map[string]*domain.Conversation
	// pair key (book id + sorted participant ids) -> conversation id
	pairs map[string]string
}

func NewStore() *Store {
	return &Store{
		convs: make(map[string]*domain.Conversation),
		pairs: make(map[string]string),
	}
}

func pairKey(bookID, a, b string) string {
	if a > b {
		a, b = b, a
	}
	return bookID + "|" + a + "|" + b
}

// Open returns the conversation about bookID between the two participants,
// creating it with id when none exists. The bool reports creation.
func (s *Store) Open(id, bookID, bookTitle, coverURL string, from, to domain.Participant, at time.Time) (domain.Conversation, bool) {
	key := pairKey(bookID, from.ID, to.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pairs[key]; ok {
		return clone(s.convs[existing]), false
	}
	conv := &domain.Conversation{
		ID:           id,
		BookID:       bookID,
		BookTitle:    bookTitle,
		CoverURL:     coverURL,
		Participants: [2]domain.Participant{from, to},
		Unread:       map[string]int{from.ID: 0, to.ID: 0},
		UpdatedAt:    at,
	}
	s.convs[id] = conv
	s.pairs[key] = id
	return clone(conv), true
}

// Append adds msg from its sender and bumps the counterpart's unread count.
func (s *Store) Append(conversationID string, msg domain.Message) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return domain.Conversation{}, ErrUnknownConversation
	}
	if !isParticipant(conv, msg.SenderID) {
		return domain.Conversation{}, ErrNotParticipant
	}
	conv.Messages = append(conv.Messages, msg)
	conv.Unread[conv.Counterpart(msg.SenderID).ID]++
	conv.UpdatedAt = msg.SentAt
	return clone(conv), nil
}

// Get returns a conversation visible to principalID.
func (s *Store) Get(conversationID, principalID string) (domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return domain.Conversation{}, ErrUnknownConversation
	}
	if !isParticipant(conv, principalID) {
		return domain.Conversation{}, ErrNotParticipant
	}
	return clone(conv), nil
}

// MarkRead resets principalID's unread counter.
func (s *Store) MarkRead(conversationID, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return ErrUnknownConversation
	}
	if !isParticipant(conv, principalID) {
		return ErrNotParticipant
	}
	conv.Unread[principalID] = 0
	return nil
}

// ListFor returns principalID's conversations, most recent activity first.
// A non-blank filter keeps conversations whose counterpart name or book
// title contains it, ignoring case.
func (s *Store) ListFor(principalID, filter string) []domain.Conversation {
	needle := strings.ToLower(strings.TrimSpace(filter))
	s.mu.RLock()
	res := make([]domain.Conversation, 0)
	for _, conv := range s.convs {
		if !isParticipant(conv, principalID) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(conv.Counterpart(principalID).Name), needle) &&
			!strings.Contains(strings.ToLower(conv.BookTitle), needle) {
			continue
		}
		res = append(res, clone(conv))
	}
	s.mu.RUnlock()
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].UpdatedAt.Equal(res[j].UpdatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res
}

// UnreadCount sums principalID's unread counters.
func (s *Store) UnreadCount(principalID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, conv := range s.convs {
		total += conv.Unread[principalID]
	}
	return total
}

func isParticipant(conv *domain.Conversation, principalID string) bool {
	return conv.Participants[0].ID == principalID || conv.Participants[1].ID == principalID
}

func clone(conv *domain.Conversation) domain.Conversation {
	out := *conv
	out.Messages = append([]domain.Message(nil), conv.Messages...)
	out.Unread = make(map[string]int, len(conv.Unread))
	for k, v := range conv.Unread {
		out.Unread[k] = v
	}
	return out
}
