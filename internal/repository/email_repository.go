package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{db: db}
}

// Create inserts an email. A message already mirrored under the same
// message id (moved between folders) or the same (account, folder, uid)
// row is skipped silently.
func (r *emailRepository) Create(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, email.AccountID)

	if email.MessageID != "" {
		var count int64
		err := r.db.WithContext(ctx).
			Model(&models.Email{}).
			Where("account_id = ? AND message_id = ?", email.AccountID, email.MessageID).
			Count(&count).Error
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		if count > 0 {
			return nil
		}
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "folder_type"}, {Name: "imap_uid"}},
			DoNothing: true,
		}).
		Create(email)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to create email: %w", result.Error)
	}
	return nil
}

func (r *emailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var email models.Email
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) GetByUID(ctx context.Context, accountID string, folder enum.FolderType, uid uint32) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)
	tracing.TagFolder(span, folder.String())

	var email models.Email
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND folder_type = ? AND imap_uid = ?", accountID, folder, uid).
		First(&email).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) CountByFolder(ctx context.Context, accountID string, folder enum.FolderType) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.CountByFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)
	tracing.TagFolder(span, folder.String())

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("account_id = ? AND folder_type = ?", accountID, folder).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

func (r *emailRepository) ListByFolder(ctx context.Context, accountID string, folder enum.FolderType, limit, offset int) ([]*models.Email, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)
	tracing.TagFolder(span, folder.String())

	query := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("account_id = ? AND folder_type = ?", accountID, folder)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	var emails []*models.Email
	err := query.
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}
	return emails, total, nil
}

// StoreChunk persists a backfill chunk and advances the folder watermark
// in a single transaction, so a crash never leaves emails counted but
// not stored or vice versa.
func (r *emailRepository) StoreChunk(ctx context.Context, emails []*models.Email, state *models.FolderSyncState) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.StoreChunk")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, state.AccountID)
	tracing.TagFolder(span, state.FolderType.String())
	span.LogKV("chunk.size", len(emails))

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, email := range emails {
			// A message moved between folders keeps its message-id but
			// gets a new UID, so the UID conflict clause alone would
			// store it twice.
			if email.MessageID != "" {
				var count int64
				err := tx.Model(&models.Email{}).
					Where("account_id = ? AND message_id = ?", email.AccountID, email.MessageID).
					Count(&count).Error
				if err != nil {
					tracing.TraceErr(span, err)
					return fmt.Errorf("failed to check message id %s: %w", email.MessageID, err)
				}
				if count > 0 {
					continue
				}
			}

			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "account_id"}, {Name: "folder_type"}, {Name: "imap_uid"}},
				DoNothing: true,
			}).Create(email).Error
			if err != nil {
				tracing.TraceErr(span, err)
				return fmt.Errorf("failed to store email uid %d: %w", email.ImapUID, err)
			}
		}

		state.LastSyncAt = utils.Now()
		if err := tx.Save(state).Error; err != nil {
			tracing.TraceErr(span, err)
			return fmt.Errorf("failed to advance folder sync state: %w", err)
		}
		return nil
	})
}
