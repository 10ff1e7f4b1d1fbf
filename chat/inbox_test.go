package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mingle/models"
)

type inboxEvent struct {
	conversations []models.Conversation
	err           error
}

func recordInbox() (InboxHandler, chan inboxEvent) {
	events := make(chan inboxEvent, 16)
	return func(conversations []models.Conversation, err error) {
		events <- inboxEvent{conversations: conversations, err: err}
	}, events
}

func waitInbox(t *testing.T, events chan inboxEvent) inboxEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbox delivery")
		return inboxEvent{}
	}
}

func seedInbox(store *memStore) {
	store.seed(models.Conversation{
		ID:           "alice_bob",
		Participants: []string{"alice", "bob"},
		ParticipantDetails: map[string]models.ParticipantDetail{
			"alice": {DisplayName: "Alice"},
			"bob":   {DisplayName: "Bob Marley"},
		},
		LastMessage: &models.LastMessage{Text: text("newer"), SenderID: "bob", Timestamp: 20},
	})
	store.seed(models.Conversation{
		ID:           "alice_carol",
		Participants: []string{"alice", "carol"},
		ParticipantDetails: map[string]models.ParticipantDetail{
			"alice": {DisplayName: "Alice"},
			"carol": {DisplayName: "Carol"},
		},
		LastMessage: &models.LastMessage{Text: text("older"), SenderID: "carol", Timestamp: 10},
	})
	store.seed(models.Conversation{
		ID:           "alice_dan",
		Participants: []string{"alice", "dan"},
		ParticipantDetails: map[string]models.ParticipantDetail{
			"alice": {DisplayName: "Alice"},
			"dan":   {DisplayName: "Dan"},
		},
		LastMessage: nil,
	})
}

func TestInboxOrdersByRecency(t *testing.T) {
	store := newMemStore()
	seedInbox(store)

	handler, events := recordInbox()
	cancel, err := NewInboxSynchronizer(store).Subscribe(context.Background(), "alice", handler)
	require.NoError(t, err)
	defer cancel()

	ev := waitInbox(t, events)
	require.NoError(t, ev.err)
	require.Len(t, ev.conversations, 3)
	require.Equal(t, "alice_bob", ev.conversations[0].ID)
	require.Equal(t, "alice_carol", ev.conversations[1].ID)
	require.Equal(t, "alice_dan", ev.conversations[2].ID, "conversations with no message sort last")
}

func TestInboxFilterWithoutResubscribe(t *testing.T) {
	store := newMemStore()
	seedInbox(store)

	sync := NewInboxSynchronizer(store)
	handler, events := recordInbox()
	cancel, err := sync.Subscribe(context.Background(), "alice", handler)
	require.NoError(t, err)
	defer cancel()
	waitInbox(t, events)

	sync.SetFilter("MARL")
	filtered := waitInbox(t, events)
	require.NoError(t, filtered.err)
	require.Len(t, filtered.conversations, 1)
	require.Equal(t, "alice_bob", filtered.conversations[0].ID)

	sync.SetFilter("")
	cleared := waitInbox(t, events)
	require.Len(t, cleared.conversations, 3)
}

func TestInboxTwoPhaseDelete(t *testing.T) {
	store := newMemStore()
	seedInbox(store)
	ctx := context.Background()

	sync := NewInboxSynchronizer(store)
	handler, events := recordInbox()
	cancel, err := sync.Subscribe(ctx, "alice", handler)
	require.NoError(t, err)
	defer cancel()
	waitInbox(t, events)

	// Cancelled request performs no write.
	sync.RequestDelete("alice_bob")
	sync.CancelDelete()
	require.NoError(t, sync.ConfirmDelete(ctx))
	convo, err := store.GetConversation(ctx, "alice_bob")
	require.NoError(t, err)
	require.NotNil(t, convo)

	// Confirmed request removes the conversation from the next delivery.
	sync.RequestDelete("alice_bob")
	require.NoError(t, sync.ConfirmDelete(ctx))

	ev := waitInbox(t, events)
	require.NoError(t, ev.err)
	require.Len(t, ev.conversations, 2)
	for _, c := range ev.conversations {
		require.NotEqual(t, "alice_bob", c.ID)
	}

	convo, err = store.GetConversation(ctx, "alice_bob")
	require.NoError(t, err)
	require.Nil(t, convo)
}

func TestInboxDeleteReachesBothParticipants(t *testing.T) {
	store := newMemStore()
	seedInbox(store)
	ctx := context.Background()

	aliceSync := NewInboxSynchronizer(store)
	aliceHandler, aliceEvents := recordInbox()
	cancelAlice, err := aliceSync.Subscribe(ctx, "alice", aliceHandler)
	require.NoError(t, err)
	defer cancelAlice()

	bobHandler, bobEvents := recordInbox()
	cancelBob, err := NewInboxSynchronizer(store).Subscribe(ctx, "bob", bobHandler)
	require.NoError(t, err)
	defer cancelBob()

	waitInbox(t, aliceEvents)
	first := waitInbox(t, bobEvents)
	require.Len(t, first.conversations, 1)

	aliceSync.RequestDelete("alice_bob")
	require.NoError(t, aliceSync.ConfirmDelete(ctx))

	bobView := waitInbox(t, bobEvents)
	require.NoError(t, bobView.err)
	require.Empty(t, bobView.conversations)
}

func TestInboxUnsubscribeIsIdempotent(t *testing.T) {
	store := newMemStore()
	seedInbox(store)

	handler, events := recordInbox()
	cancel, err := NewInboxSynchronizer(store).Subscribe(context.Background(), "alice", handler)
	require.NoError(t, err)
	waitInbox(t, events)

	cancel()
	cancel()

	store.seed(models.Conversation{
		ID:           "alice_eve",
		Participants: []string{"alice", "eve"},
		LastMessage:  &models.LastMessage{Text: text("x"), SenderID: "eve", Timestamp: 99},
	})
	store.notifier.Notify(InboxKey("alice"))

	select {
	case ev := <-events:
		t.Fatalf("unexpected delivery after unsubscribe: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
