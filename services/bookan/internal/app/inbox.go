package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookan/internal/ratelimit"
	"bookan/internal/util"
	"bookan/pkg/catalog"
	"bookan/pkg/domain"
	"bookan/pkg/events"
	"bookan/pkg/identity"
	"bookan/pkg/messaging"
)

const maxMessageRunes = 2000

// Inbox handles conversations between borrowers and lenders.
type Inbox struct {
	deps
	store     *messaging.Store
	books     *catalog.Store
	directory *identity.Directory
	limiter   ratelimit.Limiter
}

// StartConversation opens the thread between principal and the owner of
// listingID, or returns the one that already exists.
func (i *Inbox) StartConversation(ctx context.Context, principal domain.Principal, listingID string) (domain.Conversation, error) {
	if principal.ID == "" {
		return domain.Conversation{}, ErrUnauthenticated
	}
	book, ok := i.books.Get(listingID)
	if !ok {
		return domain.Conversation{}, fmt.Errorf("%w: book %s", ErrNotFound, listingID)
	}
	if book.Owner.ID == principal.ID {
		return domain.Conversation{}, fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}
	from := domain.Participant{ID: principal.ID, Name: principal.Name, Avatar: principal.Avatar}
	to := domain.Participant{ID: book.Owner.ID, Name: book.Owner.Name, Avatar: avatarFor(book.Owner.Name)}
	if account, ok := i.directory.ByID(book.Owner.ID); ok {
		to.Avatar = account.Principal.Avatar
	}
	conv, created := i.store.Open(util.NewID(), book.ID, book.Title, book.CoverURL, from, to, i.now().UTC())
	if created {
		i.log(ctx).Info("conversation started", "conversation_id", conv.ID, "book_id", book.ID)
	}
	return conv, nil
}

// Send appends a message from principal to the conversation.
func (i *Inbox) Send(ctx context.Context, principal domain.Principal, conversationID, text string) (domain.Message, error) {
	if principal.ID == "" {
		return domain.Message{}, ErrUnauthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, fmt.Errorf("%w: message text required", ErrValidation)
	}
	if len([]rune(text)) > maxMessageRunes {
		return domain.Message{}, fmt.Errorf("%w: message too long", ErrValidation)
	}
	if _, err := i.store.Get(conversationID, principal.ID); err != nil {
		return domain.Message{}, translateMessagingErr(err, conversationID)
	}
	if !i.limiter.Allow(principal.ID) {
		return domain.Message{}, ErrRateLimited
	}
	msg := domain.Message{
		ID:       util.NewID(),
		SenderID: principal.ID,
		Text:     text,
		SentAt:   i.now().UTC(),
	}
	if _, err := i.store.Append(conversationID, msg); err != nil {
		return domain.Message{}, translateMessagingErr(err, conversationID)
	}
	i.publish(ctx, events.Event{Type: events.MessageSent, ActorID: principal.ID, SubjectID: conversationID, Payload: msg})
	return msg, nil
}

// Conversation returns one thread visible to principal.
func (i *Inbox) Conversation(principal domain.Principal, conversationID string) (domain.Conversation, error) {
	conv, err := i.store.Get(conversationID, principal.ID)
	if err != nil {
		return domain.Conversation{}, translateMessagingErr(err, conversationID)
	}
	return conv, nil
}

// Conversations lists principal's threads, most recent activity first.
// filter matches the other participant's name or the book title.
func (i *Inbox) Conversations(principal domain.Principal, filter string) []domain.Conversation {
	return i.store.ListFor(principal.ID, filter)
}

// MarkRead clears principal's unread count on the conversation.
func (i *Inbox) MarkRead(principal domain.Principal, conversationID string) error {
	if err := i.store.MarkRead(conversationID, principal.ID); err != nil {
		return translateMessagingErr(err, conversationID)
	}
	return nil
}

// UnreadCount sums principal's unread messages over all conversations.
func (i *Inbox) UnreadCount(principal domain.Principal) int {
	return i.store.UnreadCount(principal.ID)
}

func translateMessagingErr(err error, conversationID string) error {
	switch {
	case errors.Is(err, messaging.ErrUnknownConversation):
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	case errors.Is(err, messaging.ErrNotParticipant):
		return fmt.Errorf("%w: not a participant", ErrForbidden)
	default:
		return err
	}
}
