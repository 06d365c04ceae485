package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/config"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/services/storage"
)

type Repositories struct {
	MailAccountRepository     interfaces.MailAccountRepository
	EmailRepository           interfaces.EmailRepository
	EmailAttachmentRepository interfaces.EmailAttachmentRepository
	FolderSyncStateRepository interfaces.FolderSyncStateRepository
	SyncLogRepository         interfaces.SyncLogRepository
}

func InitRepositories(db *gorm.DB, storageConfig *config.StorageConfig) *Repositories {
	attachmentStorage := storage.NewS3StorageService(
		storageConfig.AccessKeyID,
		storageConfig.AccessKeySecret,
		storageConfig.Region,
		storageConfig.Endpoint,
		storageConfig.AttachmentBucket,
	)

	return &Repositories{
		MailAccountRepository:     NewMailAccountRepository(db),
		EmailRepository:           NewEmailRepository(db),
		EmailAttachmentRepository: NewEmailAttachmentRepository(db, attachmentStorage),
		FolderSyncStateRepository: NewFolderSyncStateRepository(db),
		SyncLogRepository:         NewSyncLogRepository(db),
	}
}

func Migrate(dbConfig *config.DatabaseConfig, gormDB *gorm.DB) error {
	db, err := gormDB.DB()
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(5)

	err = gormDB.AutoMigrate(
		&models.MailAccount{},
		&models.Email{},
		&models.EmailAttachment{},
		&models.FolderSyncState{},
		&models.SyncLog{},
	)

	db.Close()

	db, _ = gormDB.DB()
	db.SetMaxIdleConns(dbConfig.MaxIdleConn)
	db.SetMaxOpenConns(dbConfig.MaxConn)
	db.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
