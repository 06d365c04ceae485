package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
)

type FolderProgress struct {
	Total   int `json:"total"`
	Synced  int `json:"synced"`
	Percent int `json:"percent"`
}

// SyncProgress is a computed view derived from the watermark table. It
// is produced on demand and never itself a source of truth.
type SyncProgress struct {
	Status         enum.SyncStatus                    `json:"status"`
	Phase          string                             `json:"phase"`
	Folders        map[enum.FolderType]FolderProgress `json:"folders"`
	OverallPercent int                                `json:"overallPercent"`
	TotalEmails    int                                `json:"totalEmails"`
	SyncedEmails   int                                `json:"syncedEmails"`
}

// SyncService drives the two-phase synchronization state machine per
// account: seed, then full backfill, then incremental fetches.
type SyncService interface {
	// StartSeed fetches the newest messages from the priority folders in
	// parallel and transitions Pending -> Seeding -> Syncing.
	StartSeed(ctx context.Context, accountID string) error
	// ContinueSync performs the sequential chunked backfill; it is
	// idempotent and resumable, and transitions to Completed once every
	// folder is exhausted.
	ContinueSync(ctx context.Context, accountID string) error
	// FetchNewEmails mirrors identifiers newer than each folder's
	// watermark and returns the number of new messages found. Only legal
	// for Completed accounts.
	FetchNewEmails(ctx context.Context, accountID string) (int, error)
	GetSyncProgress(ctx context.Context, accountID string) (*SyncProgress, error)
	// MarkSyncFailed records the reason and transitions to Failed from
	// any state; the account stops being scheduled until retried.
	MarkSyncFailed(ctx context.Context, accountID, reason string) error
	// RetrySync resets a Failed account to Pending.
	RetrySync(ctx context.Context, accountID string) error
}
