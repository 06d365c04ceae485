package enum

type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncSeeding   SyncStatus = "seeding"
	SyncSyncing   SyncStatus = "syncing"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

func (t SyncStatus) String() string {
	return string(t)
}

// NeedsSync reports whether an account in this status still requires
// seed or backfill work.
func (t SyncStatus) NeedsSync() bool {
	switch t {
	case SyncPending, SyncSeeding, SyncSyncing:
		return true
	default:
		return false
	}
}

func (t SyncStatus) IsTerminal() bool {
	return t == SyncCompleted || t == SyncFailed
}
