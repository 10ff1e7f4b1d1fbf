package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"mingle/models"
)

func TestSessionReplacesOpenStream(t *testing.T) {
	store := newMemStore()
	session := NewSession("alice", store, &fakeUploader{})
	defer session.Close()

	firstHandler, firstEvents := recordStream()
	_, err := session.OpenMessages(context.Background(), "alice_bob", firstHandler)
	require.NoError(t, err)
	waitEvent(t, firstEvents)

	// Opening a second stream, even for the same conversation, tears the
	// first one down so nothing is delivered twice.
	secondHandler, secondEvents := recordStream()
	_, err = session.OpenMessages(context.Background(), "alice_bob", secondHandler)
	require.NoError(t, err)
	waitEvent(t, secondEvents)

	_, err = store.AppendMessage(context.Background(), "alice_bob", MessageDraft{Text: text("hi"), SenderID: "alice"})
	require.NoError(t, err)

	ev := waitEvent(t, secondEvents)
	require.Len(t, ev.messages, 1)
	requireNoEvent(t, firstEvents)
}

func TestSessionCloseReleasesEverything(t *testing.T) {
	store := newMemStore()
	store.seed(models.Conversation{ID: "alice_bob", Participants: []string{"alice", "bob"}})
	session := NewSession("alice", store, &fakeUploader{})

	streamHandler, streamEvents := recordStream()
	_, err := session.OpenMessages(context.Background(), "alice_bob", streamHandler)
	require.NoError(t, err)
	waitEvent(t, streamEvents)

	inboxHandler, inboxEvents := recordInbox()
	_, _, err = session.OpenInbox(context.Background(), inboxHandler)
	require.NoError(t, err)
	waitInbox(t, inboxEvents)

	session.Close()
	session.Close()

	_, err = store.AppendMessage(context.Background(), "alice_bob", MessageDraft{Text: text("late"), SenderID: "bob"})
	require.NoError(t, err)
	requireNoEvent(t, streamEvents)

	// A closed session rejects new subscriptions.
	_, err = session.OpenMessages(context.Background(), "alice_bob", streamHandler)
	require.ErrorIs(t, err, ErrSubscriptionClosed)
	_, _, err = session.OpenInbox(context.Background(), inboxHandler)
	require.ErrorIs(t, err, ErrSubscriptionClosed)
}

// Full flow: alice sends "hello" to bob; bob's open message stream and inbox
// both observe it on their next deliveries.
func TestSendReachesPeerStreamAndInbox(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	bob := NewSession("bob", store, &fakeUploader{})
	defer bob.Close()

	conversationID, err := DeriveConversationID("bob", "alice")
	require.NoError(t, err)
	require.Equal(t, "alice_bob", conversationID)

	streamHandler, streamEvents := recordStream()
	_, err = bob.OpenMessages(ctx, conversationID, streamHandler)
	require.NoError(t, err)
	empty := waitEvent(t, streamEvents)
	require.Empty(t, empty.messages)

	inboxHandler, inboxEvents := recordInbox()
	_, _, err = bob.OpenInbox(ctx, inboxHandler)
	require.NoError(t, err)
	emptyInbox := waitInbox(t, inboxEvents)
	require.Empty(t, emptyInbox.conversations)

	alice := NewSession("alice", store, &fakeUploader{})
	defer alice.Close()
	_, err = alice.Send(ctx, SendRequest{
		ConversationID: conversationID,
		Participants:   []string{"alice", "bob"},
		ParticipantDetails: map[string]models.ParticipantDetail{
			"alice": {DisplayName: "Alice"},
			"bob":   {DisplayName: "Bob"},
		},
		Content: Content{Text: "hello"},
	})
	require.NoError(t, err)

	ev := waitEvent(t, streamEvents)
	require.NoError(t, ev.err)
	require.Len(t, ev.messages, 1)
	require.Equal(t, "hello", *ev.messages[0].Text)
	require.Equal(t, "alice", ev.messages[0].SenderID)

	inboxView := waitInbox(t, inboxEvents)
	require.NoError(t, inboxView.err)
	require.Len(t, inboxView.conversations, 1)
	require.Equal(t, conversationID, inboxView.conversations[0].ID)
	require.Equal(t, "hello", *inboxView.conversations[0].LastMessage.Text)
}
