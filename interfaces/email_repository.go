package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

type EmailRepository interface {
	// Create inserts a mirrored message. It is a no-op when the same
	// message id already exists for the account (a message moved between
	// folders) or the (account, folder, uid) row is already present.
	Create(ctx context.Context, email *models.Email) error
	GetByID(ctx context.Context, id string) (*models.Email, error)
	GetByUID(ctx context.Context, accountID string, folder enum.FolderType, uid uint32) (*models.Email, error)
	CountByFolder(ctx context.Context, accountID string, folder enum.FolderType) (int64, error)
	ListByFolder(ctx context.Context, accountID string, folder enum.FolderType, limit, offset int) ([]*models.Email, int64, error)
	// StoreChunk inserts a chunk of messages and advances the folder
	// watermark in a single transaction, so a crash never leaves the
	// watermark ahead of the stored rows.
	StoreChunk(ctx context.Context, emails []*models.Email, state *models.FolderSyncState) error
}
