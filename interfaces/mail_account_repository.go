package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

type MailAccountRepository interface {
	Create(ctx context.Context, account *models.MailAccount) error
	GetByID(ctx context.Context, id string) (*models.MailAccount, error)
	// GetAccountsNeedingSync returns active accounts in Pending, Seeding
	// or Syncing.
	GetAccountsNeedingSync(ctx context.Context) ([]*models.MailAccount, error)
	// GetAccountsForIncrementalSync returns active Completed accounts
	// whose last sync is older than staleBefore.
	GetAccountsForIncrementalSync(ctx context.Context, staleBefore time.Time) ([]*models.MailAccount, error)
	UpdateSyncStatus(ctx context.Context, id string, status enum.SyncStatus, syncError *string) error
	MarkSynced(ctx context.Context, id string, initialSyncCompleted bool) error
	SaveTokens(ctx context.Context, id, accessToken string, expiresAt time.Time) error
	// Deactivate marks an unlinked account inactive; accounts are never
	// hard-deleted while linked.
	Deactivate(ctx context.Context, id string) error
}
