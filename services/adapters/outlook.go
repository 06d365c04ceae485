package adapters

import (
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/config"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/services/retry"
)

// OutlookAdapter covers Outlook / Office 365 IMAP endpoints.
type OutlookAdapter struct {
	BaseAdapter
}

func NewOutlookAdapter(cfg *config.SyncConfig, tokens interfaces.TokenService, retrier *retry.Executor, log logger.Logger) *OutlookAdapter {
	defaults := map[enum.FolderType]string{
		enum.FolderInbox:   "INBOX",
		enum.FolderSent:    "Sent Items",
		enum.FolderDrafts:  "Drafts",
		enum.FolderTrash:   "Deleted Items",
		enum.FolderSpam:    "Junk Email",
		enum.FolderArchive: "Archive",
	}

	return &OutlookAdapter{
		BaseAdapter: BaseAdapter{
			provider:    enum.ProviderOutlook,
			folders:     mergeFolderOverrides(defaults, cfg.OutlookFolders),
			maxParallel: cfg.MaxParallelOutlook,
			imapHost:    "outlook.office365.com",
			imapPort:    993,
			tokens:      tokens,
			retrier:     retrier,
			log:         log,
		},
	}
}
