package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mingle/chat"
)

// GetChatList returns a one-shot snapshot of the user's inbox: conversations
// ordered by last-message recency, shaped with the other participant's
// details and the caller's unread counter. The live view goes through /ws.
func GetChatList(c *gin.Context) {
	userID := c.GetString("userId")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conversations, err := store.ListConversations(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}
	chat.SortConversations(conversations)

	response := make([]map[string]interface{}, 0, len(conversations))
	for _, convo := range conversations {
		otherID := convo.Other(userID)
		partner := map[string]interface{}{
			"id":         otherID,
			"name":       "Unknown",
			"avatar":     fallbackAvatar,
			"isVerified": false,
		}
		if detail, ok := convo.ParticipantDetails[otherID]; ok {
			if detail.DisplayName != "" {
				partner["name"] = detail.DisplayName
			}
			if detail.PhotoURL != "" {
				partner["avatar"] = detail.PhotoURL
			}
			partner["isVerified"] = detail.IsVerified
		}

		response = append(response, map[string]interface{}{
			"id":          convo.ID,
			"lastMessage": convo.LastMessage,
			"partner":     partner,
			"unread":      convo.UnreadCount[userID],
		})
	}

	c.JSON(http.StatusOK, response)
}

// DeleteChat is the confirmed phase of conversation deletion: the whole
// conversation, messages included, disappears for both participants.
func DeleteChat(c *gin.Context) {
	userID := c.GetString("userId")
	conversationID := c.Param("id")

	if requireParticipant(c, conversationID, userID) == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := summaries.Delete(ctx, conversationID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

// MarkChatRead zeroes the caller's unread counter for the conversation.
func MarkChatRead(c *gin.Context) {
	userID := c.GetString("userId")
	conversationID := c.Param("id")

	if requireParticipant(c, conversationID, userID) == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := summaries.MarkRead(ctx, conversationID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark as read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Marked as read"})
}
