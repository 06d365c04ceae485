package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type folderSyncStateRepository struct {
	db *gorm.DB
}

func NewFolderSyncStateRepository(db *gorm.DB) interfaces.FolderSyncStateRepository {
	return &folderSyncStateRepository{db: db}
}

func (r *folderSyncStateRepository) Get(ctx context.Context, accountID string, folder enum.FolderType) (*models.FolderSyncState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.Get")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)
	tracing.TagFolder(span, folder.String())

	var state models.FolderSyncState
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND folder_type = ?", accountID, folder).
		First(&state).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &state, nil
}

func (r *folderSyncStateRepository) GetForAccount(ctx context.Context, accountID string) ([]*models.FolderSyncState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.GetForAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var states []*models.FolderSyncState
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Find(&states).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return states, nil
}

func (r *folderSyncStateRepository) Save(ctx context.Context, state *models.FolderSyncState) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, state.AccountID)
	tracing.TagFolder(span, state.FolderType.String())

	if err := r.db.WithContext(ctx).Save(state).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *folderSyncStateRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.DeleteForAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.FolderSyncState{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
