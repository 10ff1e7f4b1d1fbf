package models

// Message is an immutable unit of content within a conversation. At least one
// of Text/ImageURL is set. Timestamp is assigned by the store at write time,
// never by the client.
type Message struct {
	ID             string  `bson:"_id,omitempty" json:"id"`
	ConversationID string  `bson:"conversationId" json:"conversationId"`
	Text           *string `bson:"text" json:"text"`
	ImageURL       *string `bson:"imageUrl" json:"imageUrl"`
	SenderID       string  `bson:"senderId" json:"senderId"`
	Timestamp      int64   `bson:"timestamp" json:"timestamp"`
}
