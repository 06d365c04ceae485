package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

// MailAccount is one connected remote mailbox. Sync state on it is
// mutated exclusively by the sync orchestrator.
type MailAccount struct {
	ID       string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID   string             `gorm:"column:user_id;type:varchar(50);index" json:"userId"`
	TeamID   *string            `gorm:"column:team_id;type:varchar(50);index" json:"teamId"`
	Provider enum.EmailProvider `gorm:"column:provider;type:varchar(50);index;not null" json:"provider"`

	EmailAddress string        `gorm:"column:email_address;type:varchar(255);index;not null" json:"emailAddress"`
	AuthType     enum.AuthType `gorm:"column:auth_type;type:varchar(20);not null;default:password" json:"authType"`

	// Password authentication (custom IMAP)
	Password string `gorm:"column:password;type:varchar(255)" json:"-"`

	// OAuth token pair (gmail/outlook)
	AccessToken    string     `gorm:"column:access_token;type:text" json:"-"`
	RefreshToken   string     `gorm:"column:refresh_token;type:text" json:"-"`
	TokenExpiresAt *time.Time `gorm:"column:token_expires_at;type:timestamp" json:"tokenExpiresAt"`

	// IMAP endpoint, only meaningful for the custom provider; gmail and
	// outlook endpoints come from adapter configuration.
	ImapHost     string             `gorm:"column:imap_host;type:varchar(255)" json:"imapHost"`
	ImapPort     int                `gorm:"column:imap_port" json:"imapPort"`
	ImapSecurity enum.EmailSecurity `gorm:"column:imap_security;type:varchar(20);default:tls" json:"imapSecurity"`

	// Sync state
	SyncStatus enum.SyncStatus `gorm:"column:sync_status;type:varchar(20);index;not null;default:pending" json:"syncStatus"`
	SyncError  *string         `gorm:"column:sync_error;type:text" json:"syncError"`

	IsActive               bool       `gorm:"column:is_active;not null;default:true" json:"isActive"`
	InitialSyncCompletedAt *time.Time `gorm:"column:initial_sync_completed_at;type:timestamp" json:"initialSyncCompletedAt"`
	LastSyncAt             *time.Time `gorm:"column:last_sync_at;type:timestamp" json:"lastSyncAt"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (MailAccount) TableName() string {
	return "mail_accounts"
}

func (a *MailAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	return nil
}

func (a *MailAccount) IsOAuth() bool {
	return a.AuthType == enum.AuthOAuth
}

// NeedsTokenRefresh reports whether the access token is expired or
// expires within the next five minutes.
func (a *MailAccount) NeedsTokenRefresh() bool {
	if !a.IsOAuth() {
		return false
	}
	if a.TokenExpiresAt == nil {
		return true
	}
	return a.TokenExpiresAt.Add(-5 * time.Minute).Before(utils.Now())
}
