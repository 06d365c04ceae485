package adapters

import (
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/config"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/services/retry"
)

// GmailAdapter handles Gmail's bracketed folder namespace and its OAuth
// requirement. Gmail throttles aggressively, so parallelism stays low.
type GmailAdapter struct {
	BaseAdapter
}

func NewGmailAdapter(cfg *config.SyncConfig, tokens interfaces.TokenService, retrier *retry.Executor, log logger.Logger) *GmailAdapter {
	defaults := map[enum.FolderType]string{
		enum.FolderInbox:   "INBOX",
		enum.FolderSent:    "[Gmail]/Sent Mail",
		enum.FolderDrafts:  "[Gmail]/Drafts",
		enum.FolderTrash:   "[Gmail]/Trash",
		enum.FolderSpam:    "[Gmail]/Spam",
		enum.FolderArchive: "[Gmail]/All Mail",
	}

	return &GmailAdapter{
		BaseAdapter: BaseAdapter{
			provider:    enum.ProviderGmail,
			folders:     mergeFolderOverrides(defaults, cfg.GmailFolders),
			maxParallel: cfg.MaxParallelGmail,
			imapHost:    "imap.gmail.com",
			imapPort:    993,
			tokens:      tokens,
			retrier:     retrier,
			log:         log,
		},
	}
}
