package database

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mingle/chat"
	"mingle/models"
)

// Store implements chat.Store on top of the chats and messages collections.
// Each write is atomic per document; the message append and the summary
// upsert are two independent writes.
type Store struct {
	chats    *mongo.Collection
	messages *mongo.Collection
	notifier *chat.Notifier

	mu     sync.Mutex
	lastTS int64
}

func NewStore(notifier *chat.Notifier) *Store {
	return &Store{
		chats:    Chats,
		messages: Messages,
		notifier: notifier,
	}
}

// stamp assigns the write timestamp. Assignments are strictly increasing even
// when the wall clock stalls or steps backwards, so message order is stable.
func (s *Store) stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := time.Now().UnixMilli()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

func (s *Store) AppendMessage(ctx context.Context, conversationID string, draft chat.MessageDraft) (models.Message, error) {
	msg := models.Message{
		ID:             primitive.NewObjectID().Hex(),
		ConversationID: conversationID,
		Text:           draft.Text,
		ImageURL:       draft.ImageURL,
		SenderID:       draft.SenderID,
		Timestamp:      s.stamp(),
	}

	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return models.Message{}, err
	}

	s.notifier.Notify(chat.ConversationKey(conversationID))
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) MergeConversation(ctx context.Context, conversationID string, patch chat.ConversationPatch) error {
	// $set of only the named fields is the merge upsert: unreadCount and any
	// other server-side fields on the document stay untouched.
	update := bson.M{"$set": bson.M{
		"participants":       patch.Participants,
		"participantDetails": patch.ParticipantDetails,
		"lastMessage":        patch.LastMessage,
	}}

	_, err := s.chats.UpdateOne(ctx, bson.M{"_id": conversationID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return err
	}

	s.notifier.Notify(chat.ConversationKey(conversationID))
	for _, p := range patch.Participants {
		s.notifier.Notify(chat.InboxKey(p))
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var convo models.Conversation
	err := s.chats.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&convo)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &convo, nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastMessage.timestamp", Value: -1}})
	cursor, err := s.chats.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var conversations []models.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// DeleteConversation hard-deletes the conversation document and its messages.
// Open message streams for it observe a closed feed.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	convo, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	if _, err := s.chats.DeleteOne(ctx, bson.M{"_id": conversationID}); err != nil {
		return err
	}
	if _, err := s.messages.DeleteMany(ctx, bson.M{"conversationId": conversationID}); err != nil {
		return err
	}

	s.notifier.Close(chat.ConversationKey(conversationID))
	if convo != nil {
		for _, p := range convo.Participants {
			s.notifier.Notify(chat.InboxKey(p))
		}
	}
	return nil
}

func (s *Store) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	update := bson.M{"$set": bson.M{"unreadCount." + userID: 0}}
	if _, err := s.chats.UpdateOne(ctx, bson.M{"_id": conversationID}, update); err != nil {
		return err
	}
	s.notifier.Notify(chat.InboxKey(userID))
	return nil
}

func (s *Store) IncrementUnread(ctx context.Context, conversationID, userID string) error {
	update := bson.M{"$inc": bson.M{"unreadCount." + userID: 1}}
	if _, err := s.chats.UpdateOne(ctx, bson.M{"_id": conversationID}, update); err != nil {
		return err
	}
	s.notifier.Notify(chat.InboxKey(userID))
	return nil
}

func (s *Store) WatchConversation(conversationID string) (<-chan struct{}, func()) {
	return s.notifier.Watch(chat.ConversationKey(conversationID))
}

func (s *Store) WatchInbox(userID string) (<-chan struct{}, func()) {
	return s.notifier.Watch(chat.InboxKey(userID))
}
