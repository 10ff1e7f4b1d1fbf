package chat

import (
	"context"
	"errors"
	"log"

	"mingle/models"
)

// Content is the payload of a send: exactly one of Text or Attachment.
type Content struct {
	Text       string
	Attachment *Attachment
}

var errEmptyContent = errors.New("chat: content must carry exactly one of text or attachment")

// SendRequest carries everything the write path needs. ParticipantDetails is
// the caller's current display snapshot of both participants; it overwrites
// the cached copy on the conversation document.
type SendRequest struct {
	ConversationID     string
	Participants       []string
	ParticipantDetails map[string]models.ParticipantDetail
	SenderID           string
	Content            Content
}

// MessageSender is the single write path for producing a new message and
// keeping the conversation summary consistent with it.
type MessageSender struct {
	store    Store
	uploader Uploader
	summary  *SummaryStore
}

func NewMessageSender(store Store, uploader Uploader) *MessageSender {
	return &MessageSender{store: store, uploader: uploader, summary: NewSummaryStore(store)}
}

// Send uploads the attachment if present, appends the message, then
// merge-upserts the conversation summary. An upload failure persists nothing.
// An append failure after a successful upload leaves the uploaded blob in
// place. A summary failure after a durable append leaves the summary stale;
// the message log is authoritative and the summary converges on the next
// successful send.
func (s *MessageSender) Send(ctx context.Context, req SendRequest) (models.Message, error) {
	if err := s.validate(req); err != nil {
		return models.Message{}, err
	}

	draft := MessageDraft{SenderID: req.SenderID}
	var summaryText *string

	if req.Content.Attachment != nil {
		url, err := s.uploader.Upload(ctx, req.ConversationID, *req.Content.Attachment)
		if err != nil {
			return models.Message{}, &SendError{Reason: ReasonUpload, Err: err}
		}
		draft.ImageURL = &url
		// The inbox shows a placeholder for image messages, never the URL.
		placeholder := AttachmentPlaceholder
		summaryText = &placeholder
	} else {
		text := req.Content.Text
		draft.Text = &text
		summaryText = &text
	}

	msg, err := s.store.AppendMessage(ctx, req.ConversationID, draft)
	if err != nil {
		// The uploaded blob, if any, is not rolled back.
		return models.Message{}, &SendError{Reason: ReasonPersist, Err: err}
	}

	patch := ConversationPatch{
		Participants:       req.Participants,
		ParticipantDetails: req.ParticipantDetails,
		LastMessage: &models.LastMessage{
			Text:      summaryText,
			SenderID:  req.SenderID,
			Timestamp: msg.Timestamp,
		},
	}
	if err := s.summary.UpsertMerge(ctx, req.ConversationID, patch); err != nil {
		log.Printf("chat: summary upsert failed for %s, message %s already stored: %v", req.ConversationID, msg.ID, err)
		return msg, &SendError{Reason: ReasonPersist, Err: err}
	}

	return msg, nil
}

func (s *MessageSender) validate(req SendRequest) error {
	if len(req.Participants) != 2 {
		return &IdentityError{ID: ""}
	}
	derived, err := DeriveConversationID(req.Participants[0], req.Participants[1])
	if err != nil {
		return err
	}
	if req.ConversationID != derived {
		return &IdentityError{ID: req.ConversationID}
	}
	if req.SenderID != req.Participants[0] && req.SenderID != req.Participants[1] {
		return &IdentityError{ID: req.SenderID}
	}
	hasText := req.Content.Text != ""
	if hasText == (req.Content.Attachment != nil) {
		return errEmptyContent
	}
	return nil
}
