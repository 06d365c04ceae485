package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

type FolderSyncStateRepository interface {
	Get(ctx context.Context, accountID string, folder enum.FolderType) (*models.FolderSyncState, error)
	GetForAccount(ctx context.Context, accountID string) ([]*models.FolderSyncState, error)
	Save(ctx context.Context, state *models.FolderSyncState) error
	DeleteForAccount(ctx context.Context, accountID string) error
}
