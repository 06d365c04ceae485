package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type emailAttachmentRepository struct {
	db      *gorm.DB
	storage interfaces.StorageService
}

func NewEmailAttachmentRepository(db *gorm.DB, storage interfaces.StorageService) interfaces.EmailAttachmentRepository {
	return &emailAttachmentRepository{db: db, storage: storage}
}

func (r *emailAttachmentRepository) Store(ctx context.Context, attachment *models.EmailAttachment, content []byte) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.Store")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.LogKV("attachment.size", len(content))

	if attachment.ID == "" {
		attachment.ID = utils.GenerateNanoIDWithPrefix("att", 16)
	}
	attachment.Size = len(content)
	attachment.StorageKey = fmt.Sprintf("attachments/%s/%s", attachment.EmailID, attachment.ID)

	if r.storage != nil {
		if err := r.storage.Upload(ctx, attachment.StorageKey, content, attachment.ContentType); err != nil {
			tracing.TraceErr(span, err)
			return fmt.Errorf("failed to upload attachment content: %w", err)
		}
	}

	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create attachment record: %w", err)
	}
	return nil
}

func (r *emailAttachmentRepository) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.ListByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var attachments []*models.EmailAttachment
	err := r.db.WithContext(ctx).
		Where("email_id = ?", emailID).
		Find(&attachments).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attachments, nil
}

func (r *emailAttachmentRepository) GetContent(ctx context.Context, attachment *models.EmailAttachment) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.GetContent")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if r.storage == nil {
		return nil, fmt.Errorf("no storage configured")
	}
	data, err := r.storage.Download(ctx, attachment.StorageKey)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return data, nil
}
