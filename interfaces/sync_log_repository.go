package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type SyncLogRepository interface {
	Append(ctx context.Context, entry *models.SyncLog) error
	GetForAccount(ctx context.Context, accountID string, limit int) ([]*models.SyncLog, error)
}
