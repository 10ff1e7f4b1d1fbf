package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"mingle/models"
)

// InboxHandler receives the user's full conversation list, filtered and
// ordered, each time the underlying set changes or the filter changes. A
// non-nil err is terminal.
type InboxHandler func(conversations []models.Conversation, err error)

// InboxSynchronizer maintains a live view of every conversation the user is a
// participant of, ordered by last-message recency. One synchronizer serves
// one subscription.
type InboxSynchronizer struct {
	store Store

	mu            sync.Mutex
	userID        string
	handler       InboxHandler
	latest        []models.Conversation
	filter        string
	pendingDelete string
	closed        bool
}

func NewInboxSynchronizer(store Store) *InboxSynchronizer {
	return &InboxSynchronizer{store: store}
}

// Subscribe starts delivering the user's conversations. Deliveries happen on
// a dedicated goroutine, never synchronously from Subscribe.
func (x *InboxSynchronizer) Subscribe(ctx context.Context, userID string, handler InboxHandler) (CancelFunc, error) {
	if err := validateParticipantID(userID); err != nil {
		return nil, err
	}

	x.mu.Lock()
	x.userID = userID
	x.handler = handler
	x.closed = false
	x.mu.Unlock()

	changes, release := x.store.WatchInbox(userID)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			release()
			x.mu.Lock()
			x.closed = true
			x.mu.Unlock()
			close(done)
		})
	}

	go func() {
		for {
			conversations, err := x.store.ListConversations(ctx, userID)
			if err != nil {
				cancel()
				handler(nil, fmt.Errorf("%w: %v", ErrSubscriptionClosed, err))
				return
			}

			x.mu.Lock()
			x.latest = conversations
			x.mu.Unlock()
			x.deliver()

			select {
			case <-done:
				return
			case <-ctx.Done():
				cancel()
				return
			case _, open := <-changes:
				if !open {
					cancel()
					handler(nil, ErrSubscriptionClosed)
					return
				}
			}
		}
	}()

	return cancel, nil
}

// SetFilter narrows the view to conversations whose other participant's
// display name contains term, case-insensitively. It re-delivers from the
// cached snapshot without opening a new subscription. An empty term clears
// the filter.
func (x *InboxSynchronizer) SetFilter(term string) {
	x.mu.Lock()
	x.filter = term
	x.mu.Unlock()
	x.deliver()
}

func (x *InboxSynchronizer) deliver() {
	x.mu.Lock()
	if x.closed || x.handler == nil {
		x.mu.Unlock()
		return
	}
	handler := x.handler
	view := x.view()
	x.mu.Unlock()

	handler(view, nil)
}

// view assumes x.mu is held.
func (x *InboxSynchronizer) view() []models.Conversation {
	term := strings.ToLower(x.filter)
	view := make([]models.Conversation, 0, len(x.latest))
	for _, convo := range x.latest {
		if term != "" {
			other := convo.Other(x.userID)
			name := convo.ParticipantDetails[other].DisplayName
			if !strings.Contains(strings.ToLower(name), term) {
				continue
			}
		}
		view = append(view, convo)
	}
	SortConversations(view)
	return view
}

// RequestDelete marks a conversation for deletion. Nothing is written until
// ConfirmDelete; CancelDelete drops the request.
func (x *InboxSynchronizer) RequestDelete(conversationID string) {
	x.mu.Lock()
	x.pendingDelete = conversationID
	x.mu.Unlock()
}

// CancelDelete clears any pending deletion without writing.
func (x *InboxSynchronizer) CancelDelete() {
	x.mu.Lock()
	x.pendingDelete = ""
	x.mu.Unlock()
}

// ConfirmDelete hard-deletes the pending conversation for both participants.
// It is a no-op when no deletion is pending.
func (x *InboxSynchronizer) ConfirmDelete(ctx context.Context) error {
	x.mu.Lock()
	id := x.pendingDelete
	x.pendingDelete = ""
	x.mu.Unlock()

	if id == "" {
		return nil
	}
	return x.store.DeleteConversation(ctx, id)
}

// SortConversations orders by lastMessage.timestamp descending; conversations
// with no message yet sort last. Ties break by id so output is deterministic.
func SortConversations(conversations []models.Conversation) {
	sort.Slice(conversations, func(i, j int) bool {
		a, b := conversations[i].LastMessage, conversations[j].LastMessage
		switch {
		case a == nil && b == nil:
			return conversations[i].ID < conversations[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Timestamp != b.Timestamp:
			return a.Timestamp > b.Timestamp
		default:
			return conversations[i].ID < conversations[j].ID
		}
	})
}
