package sync

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

// StartSeed fetches the newest messages from the priority folders so
// the mailbox looks populated within seconds of being connected. It is
// resumable: folders already seed-complete are skipped, so a crashed
// pass picks up where it left off.
func (s *Service) StartSeed(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.StartSeed")
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
	if account.SyncStatus != enum.SyncPending && account.SyncStatus != enum.SyncSeeding {
		err := errors.Wrapf(ErrIllegalState, "cannot seed from %s", account.SyncStatus)
		tracing.TraceErr(span, err)
		return err
	}

	adapter := s.adapters.Get(account.Provider)

	// Refresh happens under the account lock, before folder workers
	// share the credentials.
	if !adapter.RefreshCredentialsIfNeeded(ctx, account) {
		reason := "oauth token refresh failed"
		if err := s.MarkSyncFailed(ctx, accountID, reason); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		return errors.New(reason)
	}

	if account.SyncStatus == enum.SyncPending {
		if err := s.transition(ctx, account.ID, enum.SyncSeeding); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		account.SyncStatus = enum.SyncSeeding
	}

	s.appendLog(ctx, account.ID, models.SyncLogActionSeedStarted, "", nil)

	folders := enum.PriorityFolders()
	pending := make([]enum.FolderType, 0, len(folders))
	for _, folder := range folders {
		state, err := s.folderStates.Get(ctx, account.ID, folder)
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		if state != nil && state.SeedComplete {
			continue
		}
		pending = append(pending, folder)
	}

	if len(pending) > 0 {
		if err := s.seedFolders(ctx, account, adapter, pending); err != nil {
			tracing.TraceErr(span, err)
			return s.failAccount(ctx, account.ID, err)
		}
	}

	s.appendLog(ctx, account.ID, models.SyncLogActionSeedCompleted, "", nil)

	if err := s.transition(ctx, account.ID, enum.SyncSyncing); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	s.log.Infof("seed completed for account %s, backfill pending", account.ID)
	return nil
}

// seedFolders runs one worker per folder, bounded by the provider's
// connection budget. The first error wins; remaining workers finish
// their current folder so partial progress is still recorded.
func (s *Service) seedFolders(ctx context.Context, account *models.MailAccount, adapter interfaces.ProviderAdapter, folders []enum.FolderType) error {
	sem := make(chan struct{}, adapter.MaxParallelFolders())
	errCh := make(chan error, len(folders))

	for _, folder := range folders {
		folder := folder
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			errCh <- s.seedFolder(ctx, account, adapter, folder)
		}()
	}

	var firstErr error
	for range folders {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) seedFolder(ctx context.Context, account *models.MailAccount, adapter interfaces.ProviderAdapter, folder enum.FolderType) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.seedFolder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	tracing.TagFolder(span, folder.String())

	session, err := adapter.OpenSession(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	defer session.Logout()

	folderName := adapter.FolderName(folder)
	status, err := session.ExamineFolder(ctx, folderName)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	messages, err := adapter.FetchLatestMessages(ctx, session, folderName, s.cfg.SeedCount)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	var highest uint32
	stored := 0
	for _, msg := range messages {
		email, attachments := mapMessage(account, folder, msg)
		if err := s.emails.Create(ctx, email); err != nil {
			s.log.Warnf("failed to store seeded message uid %d in %s: %v", msg.UID, folderName, err)
			continue
		}
		s.storeAttachments(ctx, attachments)
		s.publishEmailReceived(ctx, email)
		highest = maxUID(highest, msg.UID)
		stored++
	}

	state, err := s.folderStates.Get(ctx, account.ID, folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if state == nil {
		state = &models.FolderSyncState{
			AccountID:  account.ID,
			FolderType: folder,
		}
	}
	state.LastUID = maxUID(state.LastUID, highest)
	state.SyncedCount += stored
	state.TotalCount = int(status.Messages)
	state.SeedComplete = true
	state.LastSyncAt = utils.Now()

	if err := s.folderStates.Save(ctx, state); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	span.LogKV("seeded", stored, "folder.total", status.Messages)
	return nil
}
