package sync

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

// FetchNewEmails mirrors identifiers above each folder's watermark.
// With nothing new it is a no-op returning zero, so the scheduler can
// call it as often as it likes.
func (s *Service) FetchNewEmails(ctx context.Context, accountID string) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.FetchNewEmails")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	if !s.locks.TryAcquire(accountID) {
		return 0, ErrSyncInProgress
	}
	defer s.locks.Release(accountID)

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	if account.SyncStatus != enum.SyncCompleted {
		err := errors.Wrapf(ErrIllegalState, "cannot fetch new mail from %s", account.SyncStatus)
		tracing.TraceErr(span, err)
		return 0, err
	}

	adapter := s.adapters.Get(account.Provider)
	if !adapter.RefreshCredentialsIfNeeded(ctx, account) {
		reason := "oauth token refresh failed"
		if err := s.MarkSyncFailed(ctx, accountID, reason); err != nil {
			tracing.TraceErr(span, err)
			return 0, err
		}
		return 0, errors.New(reason)
	}

	states, err := s.folderStates.GetForAccount(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	if len(states) == 0 {
		return 0, nil
	}

	session, err := adapter.OpenSession(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, s.failAccount(ctx, account.ID, err)
	}
	defer session.Logout()

	total := 0
	for _, state := range states {
		count, err := s.fetchNewInFolder(ctx, account, adapter, session, state)
		if err != nil {
			tracing.TraceErr(span, err)
			return total, err
		}
		total += count
	}

	if err := s.accounts.MarkSynced(ctx, account.ID, false); err != nil {
		tracing.TraceErr(span, err)
		return total, err
	}

	span.LogKV("new.messages", total)
	return total, nil
}

func (s *Service) fetchNewInFolder(ctx context.Context, account *models.MailAccount, adapter interfaces.ProviderAdapter, session interfaces.MailSession, state *models.FolderSyncState) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.fetchNewInFolder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	tracing.TagFolder(span, state.FolderType.String())
	span.LogKV("watermark", state.LastUID)

	folderName := adapter.FolderName(state.FolderType)
	uids, err := session.UIDSearchSince(ctx, folderName, state.LastUID)
	if err != nil {
		return 0, s.failAccount(ctx, account.ID, err)
	}
	if len(uids) == 0 {
		return 0, nil
	}

	emails := make([]*models.Email, 0, len(uids))
	var pendingAttachments []attachmentData
	for _, uid := range uids {
		if uid <= state.LastUID {
			continue
		}
		msg, err := adapter.FetchMessageByUID(ctx, session, folderName, uid)
		if err != nil {
			s.log.Warnf("skipping new message uid %d in %s: %v", uid, folderName, err)
			continue
		}
		email, attachments := mapMessage(account, state.FolderType, msg)
		emails = append(emails, email)
		pendingAttachments = append(pendingAttachments, attachments...)
		state.LastUID = maxUID(state.LastUID, uid)
	}

	state.SyncedCount += len(emails)
	state.TotalCount += len(emails)

	if err := s.emails.StoreChunk(ctx, emails, state); err != nil {
		return 0, err
	}

	s.storeAttachments(ctx, pendingAttachments)
	for _, email := range emails {
		s.publishEmailReceived(ctx, email)
	}

	span.LogKV("new.in.folder", len(emails))
	return len(emails), nil
}
