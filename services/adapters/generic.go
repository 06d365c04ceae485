package adapters

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/config"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services/retry"
)

// GenericAdapter serves any plain IMAP server. Overview responses from
// arbitrary servers are too inconsistent to base the seed on, so the
// newest-messages fetch uses a direct sequence-range fetch instead.
type GenericAdapter struct {
	BaseAdapter
}

func NewGenericAdapter(cfg *config.SyncConfig, tokens interfaces.TokenService, retrier *retry.Executor, log logger.Logger) *GenericAdapter {
	defaults := map[enum.FolderType]string{
		enum.FolderInbox:   "INBOX",
		enum.FolderSent:    "Sent",
		enum.FolderDrafts:  "Drafts",
		enum.FolderTrash:   "Trash",
		enum.FolderSpam:    "Junk",
		enum.FolderArchive: "Archive",
	}

	return &GenericAdapter{
		BaseAdapter: BaseAdapter{
			provider:    enum.ProviderCustom,
			folders:     mergeFolderOverrides(defaults, cfg.CustomFolders),
			maxParallel: cfg.MaxParallelCustom,
			tokens:      tokens,
			retrier:     retrier,
			log:         log,
		},
	}
}

func (a *GenericAdapter) FetchLatestMessages(ctx context.Context, session interfaces.MailSession, folder string, count int) ([]*interfaces.MailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GenericAdapter.FetchLatestMessages")
	defer span.Finish()
	tracing.TagComponentAdapter(span)
	tracing.TagFolder(span, folder)
	span.LogKV("count", count)

	var messages []*interfaces.MailMessage
	err := a.retrier.Do(ctx, "RecentMessages", func(ctx context.Context) error {
		var err error
		messages, err = session.RecentMessages(ctx, folder, count)
		return err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return messages, nil
}
