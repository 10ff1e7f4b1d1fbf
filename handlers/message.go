package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mingle/chat"
	"mingle/models"
)

// GetMessages returns the full ordered message list of a conversation.
func GetMessages(c *gin.Context) {
	userID := c.GetString("userId")
	conversationID := c.Param("id")

	if requireParticipant(c, conversationID, userID) == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	messages, err := store.ListMessages(ctx, conversationID)
	if err != nil {
		log.Printf("GetMessages error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	chat.SortMessages(messages)

	c.JSON(http.StatusOK, messages)
}

// SendMessage is the write path for both text and image messages. Text
// arrives as JSON; images arrive as multipart form data under "photo". The
// conversation is implicitly created on the first send.
func SendMessage(c *gin.Context) {
	userID := c.GetString("userId")
	otherUserID := c.Param("otherUserId")

	conversationID, err := chat.DeriveConversationID(userID, otherUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid participant ID"})
		return
	}

	content, ok := readContent(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	details := map[string]models.ParticipantDetail{}
	for _, id := range []string{userID, otherUserID} {
		detail, err := getProfile(ctx, id)
		if err != nil {
			log.Printf("SendMessage profile lookup failed for %s: %v", id, err)
		}
		details[id] = detail
	}

	msg, err := sender.Send(ctx, chat.SendRequest{
		ConversationID:     conversationID,
		Participants:       []string{userID, otherUserID},
		ParticipantDetails: details,
		SenderID:           userID,
		Content:            content,
	})
	if err != nil {
		log.Printf("SendMessage error: %v", err)
		writeSendError(c, err)
		return
	}

	// Unread bump and push delivery are best effort: the message is already
	// durable and the live subscriptions have been signalled.
	if err := store.IncrementUnread(ctx, conversationID, otherUserID); err != nil {
		log.Printf("IncrementUnread error for %s: %v", conversationID, err)
	}
	go notifyNewMessage(userID, otherUserID, previewText(msg))

	c.JSON(http.StatusCreated, msg)
}

// readContent extracts exactly one of text or attachment from the request.
// Writes the error response itself when the payload is invalid.
func readContent(c *gin.Context) (chat.Content, bool) {
	if file, header, err := c.Request.FormFile("photo"); err == nil {
		defer file.Close()
		return chat.Content{Attachment: &chat.Attachment{
			Reader:      file,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
		}}, true
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must carry text or a photo"})
		return chat.Content{}, false
	}
	return chat.Content{Text: req.Text}, true
}

func writeSendError(c *gin.Context, err error) {
	var uploadErr *chat.UploadError
	if errors.As(err, &uploadErr) {
		switch uploadErr.Kind {
		case chat.UploadTooLarge:
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Photo is too large"})
		case chat.UploadUnsupportedType:
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Unsupported photo type"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to upload photo"})
		}
		return
	}

	var identityErr *chat.IdentityError
	if errors.As(err, &identityErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid participant ID"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
}

func previewText(msg models.Message) string {
	if msg.Text != nil {
		return *msg.Text
	}
	return chat.AttachmentPlaceholder
}
