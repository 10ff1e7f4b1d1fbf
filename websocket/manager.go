// Package websocket bridges the live messaging subscriptions to connected
// clients. Each connection owns one chat.Session: the inbox subscription is
// opened on connect, and the client opens and closes one message stream at a
// time as the user navigates between conversations.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mingle/chat"
	"mingle/middleware"
	"mingle/models"
)

type Manager struct {
	store    chat.Store
	uploader chat.Uploader

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

type Client struct {
	conn    *websocket.Conn
	userID  string
	send    chan []byte
	manager *Manager
	session *chat.Session
}

// frame is the wire envelope in both directions.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewManager(store chat.Store, uploader chat.Uploader) *Manager {
	return &Manager{
		store:      store,
		uploader:   uploader,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			m.mu.Unlock()
			log.Printf("WebSocket client registered for user %s. Total clients: %d", client.userID, m.ClientCount())

			client.openInbox()

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
			}
			m.mu.Unlock()

			// Tears down the inbox subscription and any open stream.
			client.session.Close()
			log.Printf("WebSocket client unregistered. Total clients: %d", m.ClientCount())
		}
	}
}

func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func WebSocketHandler(manager *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ParseToken(token)
		if err != nil {
			log.Printf("WebSocket connection rejected: %v", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			conn:    conn,
			userID:  claims.UserID,
			send:    make(chan []byte, 256),
			manager: manager,
			session: chat.NewSession(claims.UserID, manager.store, manager.uploader),
		}

		manager.register <- client

		client.push("connected", map[string]interface{}{
			"userId": claims.UserID,
			"time":   time.Now().Unix(),
		})

		go client.writePump()
		go client.readPump()
	}
}

// push marshals an event frame onto the client's send queue, dropping it if
// the queue is full rather than blocking a delivery goroutine.
func (c *Client) push(eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("WebSocket marshal error: %v", err)
		return
	}
	msg, err := json.Marshal(frame{Type: eventType, Payload: raw})
	if err != nil {
		log.Printf("WebSocket marshal error: %v", err)
		return
	}

	defer func() {
		// send is closed when the client unregisters; a delivery racing the
		// teardown is dropped.
		recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}

// openInbox starts the session's inbox subscription and forwards every
// delivery to the client.
func (c *Client) openInbox() {
	_, _, err := c.session.OpenInbox(context.Background(), func(conversations []models.Conversation, err error) {
		if err != nil {
			c.push("inbox_closed", map[string]interface{}{"reason": err.Error()})
			return
		}
		c.push("inbox", conversations)
	})
	if err != nil {
		log.Printf("WebSocket inbox subscription failed for %s: %v", c.userID, err)
		c.push("inbox_closed", map[string]interface{}{"reason": err.Error()})
	}
}

func (c *Client) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			log.Printf("WebSocket message unmarshal error: %v", err)
			continue
		}

		switch f.Type {
		case "open_chat":
			c.handleOpenChat(f.Payload)
		case "close_chat":
			c.session.CloseMessages()
		case "set_filter":
			c.handleSetFilter(f.Payload)
		case "delete_request":
			c.handleDeleteRequest(f.Payload)
		case "delete_confirm":
			c.handleDeleteConfirm()
		case "delete_cancel":
			c.handleDeleteCancel()
		case "ping":
			c.push("pong", map[string]interface{}{"time": time.Now().Unix()})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleOpenChat opens the message stream for the conversation with the
// requested peer. A previously open stream is torn down by the session first.
func (c *Client) handleOpenChat(payload json.RawMessage) {
	var req struct {
		OtherUserID string `json:"otherUserId"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}

	conversationID, err := chat.DeriveConversationID(c.userID, req.OtherUserID)
	if err != nil {
		c.push("error", map[string]interface{}{"error": "invalid participant id"})
		return
	}

	_, err = c.session.OpenMessages(context.Background(), conversationID, func(messages []models.Message, err error) {
		if err != nil {
			if errors.Is(err, chat.ErrSubscriptionClosed) {
				c.push("chat_closed", map[string]interface{}{"conversationId": conversationID})
			}
			return
		}
		c.push("messages", map[string]interface{}{
			"conversationId": conversationID,
			"messages":       messages,
		})
	})
	if err != nil {
		c.push("error", map[string]interface{}{"error": "failed to open conversation"})
	}
}

func (c *Client) handleSetFilter(payload json.RawMessage) {
	var req struct {
		Term string `json:"term"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}
	if inbox := c.session.Inbox(); inbox != nil {
		inbox.SetFilter(req.Term)
	}
}

func (c *Client) handleDeleteRequest(payload json.RawMessage) {
	var req struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	convo, err := c.manager.store.GetConversation(ctx, req.ConversationID)
	if err != nil || convo == nil {
		c.push("error", map[string]interface{}{"error": "conversation not found"})
		return
	}
	isParticipant := false
	for _, p := range convo.Participants {
		if p == c.userID {
			isParticipant = true
		}
	}
	if !isParticipant {
		c.push("error", map[string]interface{}{"error": "access denied"})
		return
	}

	if inbox := c.session.Inbox(); inbox != nil {
		inbox.RequestDelete(req.ConversationID)
	}
}

func (c *Client) handleDeleteConfirm() {
	inbox := c.session.Inbox()
	if inbox == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := inbox.ConfirmDelete(ctx); err != nil {
		log.Printf("WebSocket delete failed for user %s: %v", c.userID, err)
		c.push("error", map[string]interface{}{"error": "failed to delete conversation"})
	}
}

func (c *Client) handleDeleteCancel() {
	if inbox := c.session.Inbox(); inbox != nil {
		inbox.CancelDelete()
	}
}
