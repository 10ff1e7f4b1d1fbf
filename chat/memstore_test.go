package chat

import (
	"context"
	"fmt"
	"sync"

	"mingle/models"
)

// memStore is an in-memory Store with the same semantics as the Mongo-backed
// one: per-document atomic writes, store-assigned increasing timestamps,
// field-level merge upserts, and change signalling through a Notifier.
type memStore struct {
	notifier *Notifier

	mu            sync.Mutex
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
	seq           int64

	appendErr   error
	mergeErr    error
	listMsgErr  error
	listConvErr error
	deleteErr   error
}

func newMemStore() *memStore {
	return &memStore{
		notifier:      NewNotifier(),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func (m *memStore) AppendMessage(ctx context.Context, conversationID string, draft MessageDraft) (models.Message, error) {
	m.mu.Lock()
	if m.appendErr != nil {
		err := m.appendErr
		m.mu.Unlock()
		return models.Message{}, err
	}

	m.seq++
	msg := models.Message{
		ID:             fmt.Sprintf("m%04d", m.seq),
		ConversationID: conversationID,
		Text:           draft.Text,
		ImageURL:       draft.ImageURL,
		SenderID:       draft.SenderID,
		Timestamp:      m.seq,
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	m.mu.Unlock()

	m.notifier.Notify(ConversationKey(conversationID))
	return msg, nil
}

func (m *memStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listMsgErr != nil {
		return nil, m.listMsgErr
	}
	return append([]models.Message(nil), m.messages[conversationID]...), nil
}

func (m *memStore) MergeConversation(ctx context.Context, conversationID string, patch ConversationPatch) error {
	m.mu.Lock()
	if m.mergeErr != nil {
		err := m.mergeErr
		m.mu.Unlock()
		return err
	}

	convo, ok := m.conversations[conversationID]
	if !ok {
		convo = &models.Conversation{ID: conversationID}
		m.conversations[conversationID] = convo
	}
	convo.Participants = patch.Participants
	convo.ParticipantDetails = patch.ParticipantDetails
	convo.LastMessage = patch.LastMessage
	participants := append([]string(nil), patch.Participants...)
	m.mu.Unlock()

	m.notifier.Notify(ConversationKey(conversationID))
	for _, p := range participants {
		m.notifier.Notify(InboxKey(p))
	}
	return nil
}

func (m *memStore) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	convo, ok := m.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	cp := *convo
	return &cp, nil
}

func (m *memStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listConvErr != nil {
		return nil, m.listConvErr
	}

	var out []models.Conversation
	for _, convo := range m.conversations {
		for _, p := range convo.Participants {
			if p == userID {
				out = append(out, *convo)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) DeleteConversation(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	if m.deleteErr != nil {
		err := m.deleteErr
		m.mu.Unlock()
		return err
	}

	var participants []string
	if convo, ok := m.conversations[conversationID]; ok {
		participants = append(participants, convo.Participants...)
	}
	delete(m.conversations, conversationID)
	delete(m.messages, conversationID)
	m.mu.Unlock()

	m.notifier.Close(ConversationKey(conversationID))
	for _, p := range participants {
		m.notifier.Notify(InboxKey(p))
	}
	return nil
}

func (m *memStore) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	m.mu.Lock()
	if convo, ok := m.conversations[conversationID]; ok && convo.UnreadCount != nil {
		convo.UnreadCount[userID] = 0
	}
	m.mu.Unlock()

	m.notifier.Notify(InboxKey(userID))
	return nil
}

func (m *memStore) IncrementUnread(ctx context.Context, conversationID, userID string) error {
	m.mu.Lock()
	if convo, ok := m.conversations[conversationID]; ok {
		if convo.UnreadCount == nil {
			convo.UnreadCount = make(map[string]int)
		}
		convo.UnreadCount[userID]++
	}
	m.mu.Unlock()

	m.notifier.Notify(InboxKey(userID))
	return nil
}

func (m *memStore) WatchConversation(conversationID string) (<-chan struct{}, func()) {
	return m.notifier.Watch(ConversationKey(conversationID))
}

func (m *memStore) WatchInbox(userID string) (<-chan struct{}, func()) {
	return m.notifier.Watch(InboxKey(userID))
}

// seed installs a conversation document directly, bypassing the write path.
func (m *memStore) seed(convo models.Conversation) {
	m.mu.Lock()
	cp := convo
	m.conversations[convo.ID] = &cp
	m.mu.Unlock()
}

// seedMessage installs a message with a caller-chosen id and timestamp.
func (m *memStore) seedMessage(msg models.Message) {
	m.mu.Lock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	m.mu.Unlock()
	m.notifier.Notify(ConversationKey(msg.ConversationID))
}

// fakeUploader resolves uploads to deterministic URLs, or fails with err.
type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (u *fakeUploader) Upload(ctx context.Context, conversationID string, att Attachment) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	u.calls = append(u.calls, conversationID)
	return fmt.Sprintf("https://cdn.example.com/chat_images/%s/%d", conversationID, len(u.calls)), nil
}

func (u *fakeUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}
