package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"mingle/chat"
	"mingle/database"
	"mingle/models"
)

// Common constants and variables shared across all handler files
const fallbackAvatar = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

var store chat.Store
var uploader chat.Uploader
var sender *chat.MessageSender
var summaries *chat.SummaryStore
var vapidPrivateKey string

// PushSubscription struct for push notifications
type PushSubscription struct {
	ID     primitive.ObjectID   `bson:"_id,omitempty"`
	UserID primitive.ObjectID   `bson:"userId"`
	Sub    webpush.Subscription `bson:"sub"`
}

// Configure wires the messaging engine into the handlers. Called once from
// main before the router starts serving.
func Configure(s chat.Store, u chat.Uploader) {
	store = s
	uploader = u
	sender = chat.NewMessageSender(s, u)
	summaries = chat.NewSummaryStore(s)
}

// SetVAPIDPrivateKey sets the VAPID private key
func SetVAPIDPrivateKey(key string) {
	vapidPrivateKey = key
}

// getProfile reads a participant's display snapshot from the users
// collection. Profiles are owned by the identity service; this is a read-only
// boundary and the data may be stale.
func getProfile(ctx context.Context, userID string) (models.ParticipantDetail, error) {
	detail := models.ParticipantDetail{
		DisplayName: "Unknown",
		PhotoURL:    fallbackAvatar,
	}

	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return detail, err
	}

	var user models.User
	if err := database.Users.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		return detail, err
	}

	if user.DisplayName != "" {
		detail.DisplayName = user.DisplayName
	}
	if user.PhotoURL != "" {
		detail.PhotoURL = user.PhotoURL
	}
	detail.IsVerified = user.IsVerified
	return detail, nil
}

// requireParticipant loads the conversation and checks membership. Writes the
// error response itself; callers bail out on nil.
func requireParticipant(c *gin.Context, conversationID, userID string) *models.Conversation {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	convo, err := store.GetConversation(ctx, conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversation"})
		return nil
	}
	if convo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return nil
	}
	for _, p := range convo.Participants {
		if p == userID {
			return convo
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to conversation"})
	return nil
}
