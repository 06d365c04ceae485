package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

// Email is the local mirror of a remote message. (AccountID, FolderType,
// ImapUID) is unique; MessageID detects the same physical message showing
// up in a second folder after a move.
type Email struct {
	ID         string             `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID  string             `gorm:"column:account_id;type:varchar(50);uniqueIndex:idx_account_folder_uid;not null"`
	Provider   enum.EmailProvider `gorm:"column:provider;type:varchar(50);index;not null"`
	FolderType enum.FolderType    `gorm:"column:folder_type;type:varchar(20);uniqueIndex:idx_account_folder_uid;not null"`
	ImapUID    uint32             `gorm:"column:imap_uid;uniqueIndex:idx_account_folder_uid"`
	MessageID  string             `gorm:"column:message_id;type:varchar(255);index;not null"`
	InReplyTo  string             `gorm:"column:in_reply_to;type:varchar(255);index"`
	References pq.StringArray     `gorm:"column:references;type:text[]"`

	Subject      string         `gorm:"column:subject;type:varchar(1000)"`
	FromAddress  string         `gorm:"column:from_address;type:varchar(255);index"`
	FromName     string         `gorm:"column:from_name;type:varchar(255)"`
	ToAddresses  pq.StringArray `gorm:"column:to_addresses;type:text[]"`
	CcAddresses  pq.StringArray `gorm:"column:cc_addresses;type:text[]"`
	BccAddresses pq.StringArray `gorm:"column:bcc_addresses;type:text[]"`

	SentAt *time.Time `gorm:"column:sent_at;type:timestamp;index"`

	BodyText      string `gorm:"column:body_text;type:text"`
	BodyHTML      string `gorm:"column:body_html;type:text"`
	Preview       string `gorm:"column:preview;type:varchar(255)"`
	HasAttachment bool   `gorm:"column:has_attachment;default:false"`

	IsRead    bool `gorm:"column:is_read;default:false"`
	IsStarred bool `gorm:"column:is_starred;default:false"`

	RawHeaders JSONMap `gorm:"column:raw_headers;type:jsonb"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}
