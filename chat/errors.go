package chat

import (
	"errors"
	"fmt"
)

// ErrSubscriptionClosed is delivered as the terminal event of a live
// subscription when the underlying feed ends, either because the connection
// dropped or because the conversation was deleted. Re-subscribing is the
// caller's responsibility.
var ErrSubscriptionClosed = errors.New("chat: subscription closed")

// IdentityError reports a malformed participant id. It is a precondition
// violation: nothing has been read or written when it is returned.
type IdentityError struct {
	ID string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("chat: invalid participant id %q", e.ID)
}

// Upload failure kinds.
const (
	UploadTransport       = "transport"
	UploadTooLarge        = "payloadTooLarge"
	UploadUnsupportedType = "unsupportedType"
)

// UploadError reports a failed attachment upload. No partial state is
// persisted when one is returned; the caller may retry or abandon.
type UploadError struct {
	Kind string
	Err  error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat: upload failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("chat: upload failed (%s)", e.Kind)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Send failure reasons.
const (
	ReasonUpload  = "uploadFailed"
	ReasonPersist = "persistFailed"
)

// SendError reports a failed send. ReasonUpload means nothing was written.
// ReasonPersist means the message append or the summary upsert failed; the
// message may already be durably stored, in which case the summary converges
// on the next successful send.
type SendError struct {
	Reason string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("chat: send failed (%s): %v", e.Reason, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
