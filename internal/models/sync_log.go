package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/utils"
)

const (
	SyncLogActionSeedStarted    = "seed_started"
	SyncLogActionSeedCompleted  = "seed_completed"
	SyncLogActionChunkCompleted = "chunk_completed"
	SyncLogActionSyncCompleted  = "sync_completed"
	SyncLogActionError          = "error"
)

// SyncLog is an append-only audit trail of sync phase transitions and
// chunk completions per account.
type SyncLog struct {
	ID        string    `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID string    `gorm:"column:account_id;type:varchar(50);index;not null"`
	Action    string    `gorm:"column:action;type:varchar(50);index;not null"`
	Folder    string    `gorm:"column:folder;type:varchar(20)"`
	Details   JSONMap   `gorm:"column:details;type:jsonb"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp;index"`
}

func (SyncLog) TableName() string {
	return "sync_logs"
}

func (l *SyncLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = utils.GenerateNanoIDWithPrefix("slog", 16)
	}
	return nil
}
