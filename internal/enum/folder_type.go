package enum

import "sort"

type FolderType string

const (
	FolderInbox   FolderType = "inbox"
	FolderSent    FolderType = "sent"
	FolderDrafts  FolderType = "drafts"
	FolderTrash   FolderType = "trash"
	FolderSpam    FolderType = "spam"
	FolderArchive FolderType = "archive"
)

func (t FolderType) String() string {
	return string(t)
}

// SyncPriority orders folders for both the seed phase and the full
// backfill. Lower is higher priority.
func (t FolderType) SyncPriority() int {
	switch t {
	case FolderInbox:
		return 1
	case FolderSent:
		return 2
	case FolderDrafts:
		return 3
	case FolderTrash:
		return 4
	case FolderArchive:
		return 5
	case FolderSpam:
		return 6
	default:
		return 7
	}
}

func (t FolderType) Label() string {
	switch t {
	case FolderInbox:
		return "Inbox"
	case FolderSent:
		return "Sent"
	case FolderDrafts:
		return "Drafts"
	case FolderTrash:
		return "Trash"
	case FolderSpam:
		return "Spam"
	case FolderArchive:
		return "Archive"
	default:
		return string(t)
	}
}

func AllFolders() []FolderType {
	return []FolderType{FolderInbox, FolderSent, FolderDrafts, FolderTrash, FolderSpam, FolderArchive}
}

// PriorityFolders are the folders fetched during the initial seed.
func PriorityFolders() []FolderType {
	return []FolderType{FolderInbox, FolderSent, FolderDrafts, FolderTrash}
}

// SyncOrder returns all folders sorted by ascending sync priority.
func SyncOrder() []FolderType {
	folders := AllFolders()
	sort.SliceStable(folders, func(i, j int) bool {
		return folders[i].SyncPriority() < folders[j].SyncPriority()
	})
	return folders
}
