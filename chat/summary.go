package chat

import "context"

// AttachmentPlaceholder is what the inbox shows for an attachment-only
// message instead of the image URL.
const AttachmentPlaceholder = "📷 Photo"

// SummaryStore reads and writes the denormalized conversation document
// independently of message writes.
type SummaryStore struct {
	store Store
}

func NewSummaryStore(store Store) *SummaryStore {
	return &SummaryStore{store: store}
}

// UpsertMerge creates the conversation document if absent, or overwrites only
// the patch fields of an existing one. Pre-existing server-side fields such
// as unreadCount are preserved.
func (s *SummaryStore) UpsertMerge(ctx context.Context, conversationID string, patch ConversationPatch) error {
	return s.store.MergeConversation(ctx, conversationID, patch)
}

// Delete removes the conversation document and its messages for both
// participants.
func (s *SummaryStore) Delete(ctx context.Context, conversationID string) error {
	return s.store.DeleteConversation(ctx, conversationID)
}

// MarkRead zeroes the given participant's unread counter, leaving the other
// participant's counter untouched.
func (s *SummaryStore) MarkRead(ctx context.Context, conversationID, userID string) error {
	return s.store.MarkConversationRead(ctx, conversationID, userID)
}
