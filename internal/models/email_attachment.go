package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/utils"
)

// EmailAttachment records attachment metadata; content lives in object
// storage under StorageKey.
type EmailAttachment struct {
	ID          string    `gorm:"column:id;type:varchar(50);primaryKey"`
	EmailID     string    `gorm:"column:email_id;type:varchar(50);index;not null"`
	Filename    string    `gorm:"column:filename;type:varchar(255)"`
	ContentType string    `gorm:"column:content_type;type:varchar(255)"`
	ContentID   string    `gorm:"column:content_id;type:varchar(255)"`
	Size        int       `gorm:"column:size"`
	StorageKey  string    `gorm:"column:storage_key;type:varchar(255)"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (EmailAttachment) TableName() string {
	return "email_attachments"
}

func (a *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("att", 16)
	}
	return nil
}
