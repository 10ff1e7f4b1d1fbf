package chat

import (
	"context"
	"sync"

	"mingle/models"
)

// Session is the per-user registry of live subscription handles: at most one
// message stream and one inbox subscription at a time. Opening a new stream
// tears the previous one down first so a view never sees duplicate delivery.
// Close must be called when the session ends or the subscriptions leak for
// the lifetime of the process.
type Session struct {
	UserID string

	store    Store
	uploader Uploader
	sender   *MessageSender
	stream   *MessageStream

	mu           sync.Mutex
	closed       bool
	streamKey    string
	streamCancel CancelFunc
	inbox        *InboxSynchronizer
	inboxCancel  CancelFunc
}

func NewSession(userID string, store Store, uploader Uploader) *Session {
	return &Session{
		UserID:   userID,
		store:    store,
		uploader: uploader,
		sender:   NewMessageSender(store, uploader),
		stream:   NewMessageStream(store),
	}
}

// OpenMessages subscribes to the conversation's message stream, closing any
// previously open stream first (including one for the same conversation).
func (s *Session) OpenMessages(ctx context.Context, conversationID string, handler MessageHandler) (CancelFunc, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSubscriptionClosed
	}
	prev := s.streamCancel
	s.mu.Unlock()

	if prev != nil {
		prev()
	}

	cancel, err := s.stream.Subscribe(ctx, conversationID, handler)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.streamKey = conversationID
	s.streamCancel = cancel
	s.mu.Unlock()
	return cancel, nil
}

// CloseMessages releases the open message stream, if any.
func (s *Session) CloseMessages() {
	s.mu.Lock()
	cancel := s.streamCancel
	s.streamCancel = nil
	s.streamKey = ""
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// OpenInbox subscribes to the session user's inbox, closing any previous
// inbox subscription first. The returned synchronizer carries the filter and
// two-phase delete operations for the live view.
func (s *Session) OpenInbox(ctx context.Context, handler InboxHandler) (*InboxSynchronizer, CancelFunc, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrSubscriptionClosed
	}
	prev := s.inboxCancel
	s.mu.Unlock()

	if prev != nil {
		prev()
	}

	inbox := NewInboxSynchronizer(s.store)
	cancel, err := inbox.Subscribe(ctx, s.UserID, handler)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.inbox = inbox
	s.inboxCancel = cancel
	s.mu.Unlock()
	return inbox, cancel, nil
}

// Inbox returns the currently open inbox synchronizer, or nil when none is
// open. The synchronizer carries the filter and two-phase delete operations.
func (s *Session) Inbox() *InboxSynchronizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inbox
}

// Send writes a message from the session user through the single write path.
func (s *Session) Send(ctx context.Context, req SendRequest) (models.Message, error) {
	req.SenderID = s.UserID
	return s.sender.Send(ctx, req)
}

// Close releases every live subscription held by the session. It is
// idempotent; a closed session rejects new subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	streamCancel := s.streamCancel
	inboxCancel := s.inboxCancel
	s.streamCancel = nil
	s.inboxCancel = nil
	s.mu.Unlock()

	if streamCancel != nil {
		streamCancel()
	}
	if inboxCancel != nil {
		inboxCancel()
	}
}
