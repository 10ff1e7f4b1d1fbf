package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mingle/models"
)

// CancelFunc releases a live subscription. Calling it more than once is a
// no-op.
type CancelFunc func()

// MessageHandler receives the complete ordered message list each time the
// underlying set changes, never a diff. A non-nil err is terminal: the
// subscription is closed and no further calls follow.
type MessageHandler func(messages []models.Message, err error)

// MessageStream opens live, ordered subscriptions over a conversation's
// messages.
type MessageStream struct {
	store Store
}

func NewMessageStream(store Store) *MessageStream {
	return &MessageStream{store: store}
}

// Subscribe starts delivering full snapshots of the conversation's messages,
// sorted by (timestamp, id) ascending. Setup and every delivery happen on a
// dedicated goroutine; the first snapshot is not delivered synchronously even
// for an already-populated conversation.
func (s *MessageStream) Subscribe(ctx context.Context, conversationID string, handler MessageHandler) (CancelFunc, error) {
	if conversationID == "" {
		return nil, &IdentityError{ID: conversationID}
	}

	changes, release := s.store.WatchConversation(conversationID)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			release()
			close(done)
		})
	}

	go func() {
		for {
			messages, err := s.store.ListMessages(ctx, conversationID)
			if err != nil {
				cancel()
				handler(nil, fmt.Errorf("%w: %v", ErrSubscriptionClosed, err))
				return
			}
			SortMessages(messages)

			select {
			case <-done:
				return
			default:
			}
			handler(messages, nil)

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

// SortMessages orders messages by timestamp ascending, ties broken by id
// ascending so delivery order is deterministic.
func SortMessages(messages []models.Message) {
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].Timestamp != messages[j].Timestamp {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].ID < messages[j].ID
	})
}
