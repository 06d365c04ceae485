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

// ContinueSync walks each folder's history backward from the seed
// watermark in fixed-size chunks. Every chunk commits messages and the
// advanced watermark in one transaction, so the walk resumes exactly
// where it stopped after a crash or redeploy.
func (s *Service) ContinueSync(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.ContinueSync")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	if !s.locks.TryAcquire(accountID) {
		return ErrSyncInProgress
	}
	defer s.locks.Release(accountID)

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if account.SyncStatus != enum.SyncSyncing {
		err := errors.Wrapf(ErrIllegalState, "cannot backfill from %s", account.SyncStatus)
		tracing.TraceErr(span, err)
		return err
	}

	adapter := s.adapters.Get(account.Provider)
	if !adapter.RefreshCredentialsIfNeeded(ctx, account) {
		reason := "oauth token refresh failed"
		if err := s.MarkSyncFailed(ctx, accountID, reason); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		return errors.New(reason)
	}

	// Folders go sequentially in priority order; parallelism already
	// spent its welcome during the seed phase and history is not urgent.
	for _, folder := range enum.SyncOrder() {
		if err := s.backfillFolder(ctx, account, adapter, folder); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	if err := s.transition(ctx, account.ID, enum.SyncCompleted); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := s.accounts.MarkSynced(ctx, account.ID, true); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	s.appendLog(ctx, account.ID, models.SyncLogActionSyncCompleted, "", nil)
	s.log.Infof("backfill completed for account %s", account.ID)
	return nil
}

func (s *Service) backfillFolder(ctx context.Context, account *models.MailAccount, adapter interfaces.ProviderAdapter, folder enum.FolderType) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.backfillFolder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	tracing.TagFolder(span, folder.String())

	session, err := adapter.OpenSession(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return s.failAccount(ctx, account.ID, err)
	}
	defer session.Logout()

	folderName := adapter.FolderName(folder)
	status, err := session.ExamineFolder(ctx, folderName)
	if err != nil {
		tracing.TraceErr(span, err)
		return s.failAccount(ctx, account.ID, err)
	}

	state, err := s.folderStates.Get(ctx, account.ID, folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if state == nil {
		// Folder outside the seed set; its whole extent is backfill.
		state = &models.FolderSyncState{
			AccountID:  account.ID,
			FolderType: folder,
		}
	}
	state.TotalCount = int(status.Messages)

	chunks := 0
	for !state.BackfillDone(s.cfg.BackfillMaxPerFolder) {
		if err := ctx.Err(); err != nil {
			tracing.TraceErr(span, err)
			return err
		}

		// Sequence positions count from the oldest message; the walk
		// starts just below the newest messages already mirrored.
		end := state.TotalCount - state.SyncedCount
		if end <= 0 {
			break
		}
		start := end - s.cfg.ChunkSize + 1
		if start < 1 {
			start = 1
		}

		if err := s.backfillChunk(ctx, account, adapter, session, folderName, folder, state, uint32(start), uint32(end)); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		chunks++
	}

	span.LogKV("chunks", chunks, "synced", state.SyncedCount, "total", state.TotalCount)
	return nil
}

func (s *Service) backfillChunk(
	ctx context.Context,
	account *models.MailAccount,
	adapter interfaces.ProviderAdapter,
	session interfaces.MailSession,
	folderName string,
	folder enum.FolderType,
	state *models.FolderSyncState,
	start, end uint32,
) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.backfillChunk")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	tracing.TagFolder(span, folder.String())
	span.LogKV("chunk.start", start, "chunk.end", end)

	uids, err := adapter.UIDRange(ctx, session, folderName, start, end)
	if err != nil {
		// Retries exhausted on the connection itself. Storage errors
		// below leave the status alone; the next tick resumes.
		return s.failAccount(ctx, account.ID, err)
	}

	emails := make([]*models.Email, 0, len(uids))
	var pendingAttachments []attachmentData
	for _, uid := range uids {
		msg, err := adapter.FetchMessageByUID(ctx, session, folderName, uid)
		if err != nil {
			s.log.Warnf("skipping message uid %d in %s: %v", uid, folderName, err)
			continue
		}
		email, attachments := mapMessage(account, folder, msg)
		emails = append(emails, email)
		pendingAttachments = append(pendingAttachments, attachments...)
		state.LastUID = maxUID(state.LastUID, uid)
	}

	// Advance by chunk extent, not stored count: skipped messages must
	// not stall the walk.
	state.SyncedCount += int(end-start) + 1

	if err := s.emails.StoreChunk(ctx, emails, state); err != nil {
		return err
	}

	s.storeAttachments(ctx, pendingAttachments)
	for _, email := range emails {
		s.publishEmailReceived(ctx, email)
	}

	s.appendLog(ctx, account.ID, models.SyncLogActionChunkCompleted, folder.String(), models.JSONMap{
		"start":  start,
		"end":    end,
		"stored": len(emails),
	})
	return nil
}
