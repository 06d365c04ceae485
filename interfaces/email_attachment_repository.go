package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type EmailAttachmentRepository interface {
	// Store persists the attachment record and uploads its content to
	// object storage.
	Store(ctx context.Context, attachment *models.EmailAttachment, content []byte) error
	ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error)
	GetContent(ctx context.Context, attachment *models.EmailAttachment) ([]byte, error)
}
