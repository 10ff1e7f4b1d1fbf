package models

// Conversation is the denormalized per-conversation summary document consumed
// by the inbox. Its _id is derived from the two participant ids, never
// user-supplied.
type Conversation struct {
	ID                 string                       `bson:"_id,omitempty" json:"id"`
	Participants       []string                     `bson:"participants" json:"participants"`
	ParticipantDetails map[string]ParticipantDetail `bson:"participantDetails" json:"participantDetails"`
	LastMessage        *LastMessage                 `bson:"lastMessage" json:"lastMessage"`
	UnreadCount        map[string]int               `bson:"unreadCount,omitempty" json:"unreadCount,omitempty"`
}

// ParticipantDetail is a display snapshot of a participant, cached on the
// conversation document. It may go stale relative to the users collection.
type ParticipantDetail struct {
	DisplayName string `bson:"displayName" json:"displayName"`
	PhotoURL    string `bson:"photoURL" json:"photoURL"`
	IsVerified  bool   `bson:"isVerified" json:"isVerified"`
}

type LastMessage struct {
	Text      *string `bson:"text" json:"text"`
	SenderID  string  `bson:"senderId" json:"senderId"`
	Timestamp int64   `bson:"timestamp" json:"timestamp"`
}

// Other returns the participant id that is not userID, or "" if userID is not
// a participant.
func (c *Conversation) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}
