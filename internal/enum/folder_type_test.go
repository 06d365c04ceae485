package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncOrder(t *testing.T) {
	order := SyncOrder()

	assert.Equal(t, []FolderType{
		FolderInbox,
		FolderSent,
		FolderDrafts,
		FolderTrash,
		FolderArchive,
		FolderSpam,
	}, order)
}

func TestPriorityFolders(t *testing.T) {
	priority := PriorityFolders()

	assert.Len(t, priority, 4)
	for _, folder := range priority {
		assert.LessOrEqual(t, folder.SyncPriority(), 4)
	}
}

func TestSyncStatusNeedsSync(t *testing.T) {
	assert.True(t, SyncPending.NeedsSync())
	assert.True(t, SyncSeeding.NeedsSync())
	assert.True(t, SyncSyncing.NeedsSync())
	assert.False(t, SyncCompleted.NeedsSync())
	assert.False(t, SyncFailed.NeedsSync())
}
