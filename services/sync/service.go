package sync

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/config"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

var (
	ErrAccountNotFound = errors.New("mail account not found")
	ErrIllegalState    = errors.New("operation not legal in current sync state")
)

// AdapterResolver selects the provider adapter for an account.
type AdapterResolver interface {
	Get(provider enum.EmailProvider) interfaces.ProviderAdapter
}

// Service drives the per-account synchronization state machine. All
// sync-state knowledge lives here; adapters and sessions stay
// stateless.
type Service struct {
	cfg          *config.SyncConfig
	accounts     interfaces.MailAccountRepository
	emails       interfaces.EmailRepository
	folderStates interfaces.FolderSyncStateRepository
	syncLogs     interfaces.SyncLogRepository
	attachments  interfaces.EmailAttachmentRepository
	adapters     AdapterResolver
	publisher    interfaces.EventPublisher
	locks        *accountLocks
	log          logger.Logger
}

func NewSyncService(
	cfg *config.SyncConfig,
	accounts interfaces.MailAccountRepository,
	emails interfaces.EmailRepository,
	folderStates interfaces.FolderSyncStateRepository,
	syncLogs interfaces.SyncLogRepository,
	attachments interfaces.EmailAttachmentRepository,
	adapters AdapterResolver,
	publisher interfaces.EventPublisher,
	log logger.Logger,
) *Service {
	return &Service{
		cfg:          cfg,
		accounts:     accounts,
		emails:       emails,
		folderStates: folderStates,
		syncLogs:     syncLogs,
		attachments:  attachments,
		adapters:     adapters,
		publisher:    publisher,
		locks:        newAccountLocks(cfg.LockTTL),
		log:          log,
	}
}

func (s *Service) MarkSyncFailed(ctx context.Context, accountID, reason string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.MarkSyncFailed")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	span.LogKV("reason", reason)

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.accounts.UpdateSyncStatus(ctx, account.ID, enum.SyncFailed, &reason); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	s.appendLog(ctx, account.ID, models.SyncLogActionError, "", models.JSONMap{"reason": reason})
	s.publishStatus(ctx, account.ID, enum.SyncFailed, reason)
	s.log.Warnf("account %s marked sync failed: %s", account.ID, reason)
	return nil
}

// failAccount converts a connection-level failure into a failed status
// so the scheduler stops picking the account up until it is retried.
// Context cancellation is a shutdown, not a mailbox problem, and must
// not fail the account.
func (s *Service) failAccount(ctx context.Context, accountID string, cause error) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	if err := s.MarkSyncFailed(ctx, accountID, cause.Error()); err != nil {
		s.log.Errorf("failed to mark account %s failed: %v", accountID, err)
	}
	return cause
}

func (s *Service) RetrySync(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.RetrySync")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if account.SyncStatus != enum.SyncFailed {
		err := errors.Wrapf(ErrIllegalState, "cannot retry sync from %s", account.SyncStatus)
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.accounts.UpdateSyncStatus(ctx, account.ID, enum.SyncPending, nil); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	s.publishStatus(ctx, account.ID, enum.SyncPending, "")
	return nil
}

func (s *Service) loadAccount(ctx context.Context, accountID string) (*models.MailAccount, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.Wrap(ErrAccountNotFound, accountID)
	}
	return account, nil
}

// transition updates the account status and announces it. SyncLog
// entries are appended by the callers that know the phase context.
func (s *Service) transition(ctx context.Context, accountID string, status enum.SyncStatus) error {
	if err := s.accounts.UpdateSyncStatus(ctx, accountID, status, nil); err != nil {
		return err
	}
	s.publishStatus(ctx, accountID, status, "")
	return nil
}

func (s *Service) publishStatus(ctx context.Context, accountID string, status enum.SyncStatus, errMsg string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishSyncStatusChanged(ctx, dto.SyncStatusChanged{
		AccountID: accountID,
		Status:    status,
		Error:     errMsg,
	})
	if err != nil {
		s.log.Warnf("failed to publish status change for account %s: %v", accountID, err)
	}
}

func (s *Service) publishEmailReceived(ctx context.Context, email *models.Email) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishEmailReceived(ctx, dto.EmailReceived{
		AccountID: email.AccountID,
		EmailID:   email.ID,
		Folder:    email.FolderType,
		ImapUID:   email.ImapUID,
		MessageID: email.MessageID,
	})
	if err != nil {
		s.log.Warnf("failed to publish email received for %s: %v", email.ID, err)
	}
}

func (s *Service) appendLog(ctx context.Context, accountID, action, folder string, details models.JSONMap) {
	entry := &models.SyncLog{
		AccountID: accountID,
		Action:    action,
		Folder:    folder,
		Details:   details,
	}
	if err := s.syncLogs.Append(ctx, entry); err != nil {
		s.log.Warnf("failed to append sync log for account %s: %v", accountID, err)
	}
}

// storeAttachments uploads attachment payloads and records them against
// the stored email. Failures are logged, not fatal: the message body is
// already mirrored.
func (s *Service) storeAttachments(ctx context.Context, attachments []attachmentData) {
	if s.attachments == nil {
		return
	}
	for _, att := range attachments {
		if err := s.attachments.Store(ctx, att.record, att.content); err != nil {
			s.log.Warnf("failed to store attachment %s for email %s: %v", att.record.Filename, att.record.EmailID, err)
		}
	}
}

func maxUID(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
