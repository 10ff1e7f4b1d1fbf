package chat

import (
	"context"
	"io"
	"sync"

	"mingle/models"
)

// MessageDraft is the caller-supplied part of a new message. The store
// assigns the id and timestamp.
type MessageDraft struct {
	Text     *string
	ImageURL *string
	SenderID string
}

// ConversationPatch names the summary fields a merge upsert overwrites.
// Fields not listed here, notably unreadCount, are never touched by a merge.
type ConversationPatch struct {
	Participants       []string
	ParticipantDetails map[string]models.ParticipantDetail
	LastMessage        *models.LastMessage
}

// Store is the live document store backing conversations and messages.
// Individual writes are atomic per document; no transaction spans a message
// append and the paired summary upsert.
type Store interface {
	AppendMessage(ctx context.Context, conversationID string, draft MessageDraft) (models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)

	MergeConversation(ctx context.Context, conversationID string, patch ConversationPatch) error
	GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID string) error

	MarkConversationRead(ctx context.Context, conversationID, userID string) error
	IncrementUnread(ctx context.Context, conversationID, userID string) error

	// WatchConversation and WatchInbox return a change-signal channel and a
	// release func. The channel receives a (coalesced) signal after every
	// write touching the watched key and is closed when the watched
	// conversation is deleted or the store shuts down.
	WatchConversation(conversationID string) (<-chan struct{}, func())
	WatchInbox(userID string) (<-chan struct{}, func())
}

// Attachment is a pending binary blob. It exists only for the duration of an
// upload; on failure nothing about it is persisted.
type Attachment struct {
	Reader      io.Reader
	ContentType string
	Size        int64
}

// Uploader stores an attachment and resolves it to a durable, publicly
// fetchable URL. It never creates a message.
type Uploader interface {
	Upload(ctx context.Context, conversationID string, att Attachment) (string, error)
}

// Notifier fans change signals out to live subscriptions. Store
// implementations notify a conversation key after each write under it and
// each participant's inbox key after each summary write.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]bool
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[chan struct{}]bool)}
}

// Watch registers a watcher for key. The returned channel has a one-slot
// buffer so a signal arriving while the watcher is busy is retained and
// coalesced. The release func is idempotent.
func (n *Notifier) Watch(key string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.subs[key] == nil {
		n.subs[key] = make(map[chan struct{}]bool)
	}
	n.subs[key][ch] = true
	n.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			n.mu.Lock()
			if watchers, ok := n.subs[key]; ok {
				delete(watchers, ch)
				if len(watchers) == 0 {
					delete(n.subs, key)
				}
			}
			n.mu.Unlock()
		})
	}
	return ch, release
}

// Notify signals every watcher of key without blocking. A watcher that
// already has a pending signal keeps the single pending signal.
func (n *Notifier) Notify(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close terminates every watcher of key. Watchers observe the closed channel
// as the end of the feed.
func (n *Notifier) Close(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[key] {
		close(ch)
	}
	delete(n.subs, key)
}

// Watch keys used by store implementations.
func ConversationKey(conversationID string) string { return "conv:" + conversationID }
func InboxKey(userID string) string                { return "inbox:" + userID }
