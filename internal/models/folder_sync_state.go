package models

import (
	"time"

	"github.com/customeros/mailsync/internal/enum"
)

// FolderSyncState is the per-folder watermark row. LastUID is the sole
// resumption checkpoint for incremental sync; SyncedCount resumes the
// backfill walk. It must only advance after the chunk's messages are
// durably stored.
type FolderSyncState struct {
	ID           string          `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	AccountID    string          `gorm:"column:account_id;type:varchar(50);uniqueIndex:idx_account_folder;not null"`
	FolderType   enum.FolderType `gorm:"column:folder_type;type:varchar(20);uniqueIndex:idx_account_folder;not null"`
	LastUID      uint32          `gorm:"column:last_uid;not null"`
	SyncedCount  int             `gorm:"column:synced_count;not null"`
	TotalCount   int             `gorm:"column:total_count;not null"`
	SeedComplete bool            `gorm:"column:seed_complete;not null;default:false"`
	LastSyncAt   time.Time       `gorm:"column:last_sync_at;type:timestamp"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (FolderSyncState) TableName() string {
	return "folder_sync_states"
}

// BackfillDone reports whether the historical walk over this folder has
// reached the configured cap or the folder's full extent.
func (s *FolderSyncState) BackfillDone(maxPerFolder int) bool {
	if s.SyncedCount >= s.TotalCount {
		return true
	}
	return maxPerFolder > 0 && s.SyncedCount >= maxPerFolder
}
