package adapters

import (
	"context"
	"sort"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services/imapclient"
	"github.com/customeros/mailsync/services/retry"
)

// ErrTokenRefresh signals that an OAuth token could not be refreshed;
// the account should be marked failed rather than retried.
var ErrTokenRefresh = errors.New("oauth token refresh failed")

// BaseAdapter carries the provider-independent behavior. Provider
// variants embed it and override selectively.
type BaseAdapter struct {
	provider    enum.EmailProvider
	folders     map[enum.FolderType]string
	maxParallel int
	imapHost    string
	imapPort    int
	tokens      interfaces.TokenService
	retrier     *retry.Executor
	log         logger.Logger
}

func (a *BaseAdapter) Provider() enum.EmailProvider {
	return a.provider
}

func (a *BaseAdapter) RefreshCredentialsIfNeeded(ctx context.Context, account *models.MailAccount) bool {
	if !account.IsOAuth() || !account.NeedsTokenRefresh() {
		return true
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "BaseAdapter.RefreshCredentialsIfNeeded")
	defer span.Finish()
	tracing.TagComponentAdapter(span)
	tracing.TagAccount(span, account.ID)

	if a.tokens == nil {
		a.log.Warnf("no token service configured, cannot refresh tokens for account %s", account.ID)
		return false
	}
	if err := a.tokens.Refresh(ctx, account); err != nil {
		tracing.TraceErr(span, err)
		a.log.Errorf("token refresh failed for account %s: %v", account.ID, err)
		return false
	}
	return true
}

func (a *BaseAdapter) OpenSession(ctx context.Context, account *models.MailAccount) (interfaces.MailSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BaseAdapter.OpenSession")
	defer span.Finish()
	tracing.TagComponentAdapter(span)
	tracing.TagAccount(span, account.ID)
	span.SetTag(tracing.SpanTagProvider, a.provider.String())

	if !a.RefreshCredentialsIfNeeded(ctx, account) {
		tracing.TraceErr(span, ErrTokenRefresh)
		return nil, ErrTokenRefresh
	}

	// Known providers carry their endpoint on the adapter, not on the
	// account row. Connect against a copy so concurrent folder workers
	// never see a half-filled account.
	conn := *account
	if conn.ImapHost == "" && a.imapHost != "" {
		conn.ImapHost = a.imapHost
		conn.ImapPort = a.imapPort
		conn.ImapSecurity = enum.EmailSecuritySSL
	}
	return imapclient.Connect(ctx, &conn)
}

func (a *BaseAdapter) FolderName(folderType enum.FolderType) string {
	if name, ok := a.folders[folderType]; ok {
		return name
	}
	return strings.ToUpper(folderType.String())
}

func (a *BaseAdapter) FolderMapping() map[enum.FolderType]string {
	mapping := make(map[enum.FolderType]string, len(a.folders))
	for k, v := range a.folders {
		mapping[k] = v
	}
	return mapping
}

// ExtractUID resolves the identifier of an overview entry. Servers and
// intermediate response shapes differ: the attribute may be set, may
// arrive as a keyed field, or the collection key itself may be the only
// identifier present.
func (a *BaseAdapter) ExtractUID(key int, item interfaces.OverviewItem) (uint32, bool) {
	if item.UID > 0 {
		return item.UID, true
	}
	if raw, ok := item.Fields["uid"]; ok {
		switch v := raw.(type) {
		case uint32:
			if v > 0 {
				return v, true
			}
		case int:
			if v > 0 {
				return uint32(v), true
			}
		case int64:
			if v > 0 {
				return uint32(v), true
			}
		case float64:
			if v > 0 {
				return uint32(v), true
			}
		}
	}
	if key > 0 {
		return uint32(key), true
	}
	return 0, false
}

func (a *BaseAdapter) LatestUIDs(ctx context.Context, session interfaces.MailSession, folder string, count int) ([]uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BaseAdapter.LatestUIDs")
	defer span.Finish()
	tracing.TagComponentAdapter(span)
	tracing.TagFolder(span, folder)
	span.LogKV("count", count)

	var status *interfaces.FolderStatus
	err := a.retrier.Do(ctx, "ExamineFolder", func(ctx context.Context) error {
		var err error
		status, err = session.ExamineFolder(ctx, folder)
		return err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if status.Messages == 0 {
		return []uint32{}, nil
	}

	// Ask for at least twice the wanted window. Expunged messages leave
	// holes in the UID space, so an exact-width range can come up short.
	width := uint32(count * 2)
	from := uint32(1)
	if status.UIDNext > width {
		from = status.UIDNext - width
	}

	var overview map[int]interfaces.OverviewItem
	err = a.retrier.Do(ctx, "Overview", func(ctx context.Context) error {
		var err error
		overview, err = session.Overview(ctx, folder, interfaces.SeqRange{From: from, To: 0, UID: true})
		return err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	uids := make([]uint32, 0, len(overview))
	for key, item := range overview {
		if uid, ok := a.ExtractUID(key, item); ok {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if len(uids) > count {
		uids = uids[:count]
	}
	return uids, nil
}

func (a *BaseAdapter) UIDRange(ctx context.Context, session interfaces.MailSession, folder string, start, end uint32) ([]uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BaseAdapter.UIDRange")
	defer span.Finish()
	tracing.TagComponentAdapter(span)
	tracing.TagFolder(span, folder)
	span.LogKV("range.start", start, "range.end", end)

	var overview map[int]interfaces.OverviewItem
	err := a.retrier.Do(ctx, "Overview", func(ctx context.Context) error {
		var err error
		overview, err = session.Overview(ctx, folder, interfaces.SeqRange{From: start, To: end})
		return err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	uids := make([]uint32, 0, len(overview))
	for key, item := range overview {
		if uid, ok := a.ExtractUID(key, item); ok {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

// FetchLatestMessages resolves the newest identifiers and fetches each
// message individually. Ranged body fetches trip provider size limits,
// so one UID per fetch is the rule; a failed message is skipped rather
// than failing the folder.
func (a *BaseAdapter) FetchLatestMessages(ctx context.Context, session interfaces.MailSession, folder string, count int) ([]*interfaces.MailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BaseAdapter.FetchLatestMessages")
	defer span.Finish()
	tracing.TagComponentAdapter(span)
	tracing.TagFolder(span, folder)
	span.LogKV("count", count)

	uids, err := a.LatestUIDs(ctx, session, folder, count)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	messages := make([]*interfaces.MailMessage, 0, len(uids))
	for _, uid := range uids {
		msg, err := a.FetchMessageByUID(ctx, session, folder, uid)
		if err != nil {
			a.log.Warnf("skipping message uid %d in %s: %v", uid, folder, err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (a *BaseAdapter) FetchMessageByUID(ctx context.Context, session interfaces.MailSession, folder string, uid uint32) (*interfaces.MailMessage, error) {
	var msg *interfaces.MailMessage
	err := a.retrier.Do(ctx, "FetchMessageByUID", func(ctx context.Context) error {
		var err error
		msg, err = session.FetchMessage(ctx, folder, uid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (a *BaseAdapter) MaxParallelFolders() int {
	return a.maxParallel
}

// mergeFolderOverrides applies env-configured folder names on top of
// the provider defaults. Override keys are the logical folder literals.
func mergeFolderOverrides(defaults map[enum.FolderType]string, overrides map[string]string) map[enum.FolderType]string {
	merged := make(map[enum.FolderType]string, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[enum.FolderType(k)] = v
	}
	return merged
}
