// Package storage uploads chat attachments to Cloudinary and resolves them
// to durable URLs.
package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	"mingle/chat"
)

// Upload policy: images only, capped at 10 MiB.
const maxAttachmentBytes = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// CloudinaryUploader implements chat.Uploader. Objects land under
// chat_images/{conversationId}/{attachmentId}; ids are random per call so
// concurrent uploads from the same conversation never collide.
type CloudinaryUploader struct {
	client *cloudinary.Cloudinary
}

func NewCloudinaryUploader() (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromURL(os.Getenv("CLOUDINARY_URL"))
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration error: %w", err)
	}
	return &CloudinaryUploader{client: cld}, nil
}

// Upload validates the attachment against policy, then stores it. Policy
// violations are rejected before any network I/O. There is no internal
// retry; the caller decides whether to retry or abandon.
func (u *CloudinaryUploader) Upload(ctx context.Context, conversationID string, att chat.Attachment) (string, error) {
	if err := validateAttachment(att); err != nil {
		return "", err
	}

	attachmentID := uuid.NewString()
	params := uploader.UploadParams{
		Folder:         "chat_images/" + conversationID,
		PublicID:       attachmentID,
		Transformation: "c_limit,w_1600,h_1600,q_auto",
	}

	result, err := u.client.Upload.Upload(ctx, att.Reader, params)
	if err != nil {
		return "", &chat.UploadError{Kind: chat.UploadTransport, Err: err}
	}
	if result.Error.Message != "" {
		return "", &chat.UploadError{Kind: chat.UploadTransport, Err: fmt.Errorf("%s", result.Error.Message)}
	}
	return result.SecureURL, nil
}

func validateAttachment(att chat.Attachment) error {
	if !allowedImageTypes[att.ContentType] {
		return &chat.UploadError{Kind: chat.UploadUnsupportedType, Err: fmt.Errorf("content type %q", att.ContentType)}
	}
	if att.Size > maxAttachmentBytes {
		return &chat.UploadError{Kind: chat.UploadTooLarge, Err: fmt.Errorf("%d bytes exceeds %d byte limit", att.Size, maxAttachmentBytes)}
	}
	return nil
}
