package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type mailAccountRepository struct {
	db *gorm.DB
}

func NewMailAccountRepository(db *gorm.DB) interfaces.MailAccountRepository {
	return &mailAccountRepository{db: db}
}

func (r *mailAccountRepository) Create(ctx context.Context, account *models.MailAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).Create(account)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to create mail account: %w", result.Error)
	}
	return nil
}

func (r *mailAccountRepository) GetByID(ctx context.Context, id string) (*models.MailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	var account models.MailAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &account, nil
}

// GetAccountsNeedingSync returns active accounts still in a seed or
// backfill state.
func (r *mailAccountRepository) GetAccountsNeedingSync(ctx context.Context) ([]*models.MailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.GetAccountsNeedingSync")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.MailAccount
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("sync_status IN ?", []enum.SyncStatus{enum.SyncPending, enum.SyncSeeding, enum.SyncSyncing}).
		Find(&accounts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return accounts, nil
}

func (r *mailAccountRepository) GetAccountsForIncrementalSync(ctx context.Context, staleBefore time.Time) ([]*models.MailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.GetAccountsForIncrementalSync")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.MailAccount
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("sync_status = ?", enum.SyncCompleted).
		Where("last_sync_at IS NULL OR last_sync_at <= ?", staleBefore).
		Find(&accounts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return accounts, nil
}

func (r *mailAccountRepository) UpdateSyncStatus(ctx context.Context, id string, status enum.SyncStatus, syncError *string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.UpdateSyncStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)
	span.SetTag("sync.status", status.String())

	result := r.db.WithContext(ctx).
		Model(&models.MailAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_status": status,
			"sync_error":  syncError,
			"updated_at":  utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update sync status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("mail account %s not found", id)
	}
	return nil
}

func (r *mailAccountRepository) MarkSynced(ctx context.Context, id string, initialSyncCompleted bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.MarkSynced")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	updates := map[string]interface{}{
		"last_sync_at": utils.Now(),
		"updated_at":   utils.Now(),
	}
	if initialSyncCompleted {
		updates["initial_sync_completed_at"] = utils.Now()
	}

	result := r.db.WithContext(ctx).
		Model(&models.MailAccount{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}

func (r *mailAccountRepository) SaveTokens(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.SaveTokens")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.MailAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token":     accessToken,
			"token_expires_at": expiresAt,
			"updated_at":       utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save tokens: %w", result.Error)
	}
	return nil
}

// Deactivate halts further scheduling for an unlinked account without
// deleting its mirrored data.
func (r *mailAccountRepository) Deactivate(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.Deactivate")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.MailAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}
