package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/internal/config"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
)

type harness struct {
	service   *Service
	accounts  *memAccounts
	emails    *memEmails
	states    *memStates
	logs      *memLogs
	publisher *memPublisher
	adapter   *fakeAdapter
	mailbox   *memMailbox
	account   *models.MailAccount
}

func testConfig() *config.SyncConfig {
	return &config.SyncConfig{
		SeedCount:            5,
		ChunkSize:            4,
		BackfillMaxPerFolder: 0,
		RetryMaxAttempts:     3,
		RetryBaseBackoff:     time.Millisecond,
		LockTTL:              10 * time.Minute,
	}
}

func newHarness(t *testing.T, status enum.SyncStatus, folders map[string][]uint32) *harness {
	t.Helper()

	mailbox := newMemMailbox(folders)
	adapter := newFakeAdapter(mailbox, 2)

	account := &models.MailAccount{
		ID:           "acct_test",
		Provider:     enum.ProviderCustom,
		EmailAddress: "user@example.com",
		AuthType:     enum.AuthPassword,
		SyncStatus:   status,
		IsActive:     true,
	}

	accounts := newMemAccounts(account)
	states := newMemStates()
	emails := newMemEmails(states)
	logs := &memLogs{}
	publisher := &memPublisher{}

	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()

	service := NewSyncService(
		testConfig(),
		accounts,
		emails,
		states,
		logs,
		&memAttachments{},
		&fakeResolver{adapter: adapter},
		publisher,
		appLogger,
	)

	return &harness{
		service:   service,
		accounts:  accounts,
		emails:    emails,
		states:    states,
		logs:      logs,
		publisher: publisher,
		adapter:   adapter,
		mailbox:   mailbox,
		account:   account,
	}
}

func defaultFolders() map[string][]uint32 {
	return map[string][]uint32{
		"INBOX":   {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		"SENT":    {1, 2, 3, 4, 5},
		"DRAFTS":  {},
		"TRASH":   {20, 21, 22},
		"ARCHIVE": {1, 2, 3, 4, 5, 6, 7},
		"SPAM":    {1, 2},
	}
}

func (h *harness) status(t *testing.T) enum.SyncStatus {
	t.Helper()
	account, err := h.accounts.GetByID(context.Background(), h.account.ID)
	require.NoError(t, err)
	require.NotNil(t, account)
	return account.SyncStatus
}

func (h *harness) runSeed(t *testing.T) {
	t.Helper()
	require.NoError(t, h.service.StartSeed(context.Background(), h.account.ID))
}

func TestStartSeed_TransitionsToSyncing(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())

	h.runSeed(t)

	assert.Equal(t, enum.SyncSyncing, h.status(t))

	// Newest 5 from inbox and sent, all 3 from trash, none from empty
	// drafts; archive and spam wait for the backfill.
	count, err := h.emails.CountByFolder(context.Background(), h.account.ID, enum.FolderInbox)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.Equal(t, 13, h.emails.count())

	inboxState, err := h.states.Get(context.Background(), h.account.ID, enum.FolderInbox)
	require.NoError(t, err)
	require.NotNil(t, inboxState)
	assert.True(t, inboxState.SeedComplete)
	assert.Equal(t, uint32(12), inboxState.LastUID)
	assert.Equal(t, 5, inboxState.SyncedCount)
	assert.Equal(t, 12, inboxState.TotalCount)

	draftsState, err := h.states.Get(context.Background(), h.account.ID, enum.FolderDrafts)
	require.NoError(t, err)
	require.NotNil(t, draftsState)
	assert.True(t, draftsState.SeedComplete)
	assert.Equal(t, uint32(0), draftsState.LastUID)

	assert.Contains(t, h.logs.actions(), models.SyncLogActionSeedStarted)
	assert.Contains(t, h.logs.actions(), models.SyncLogActionSeedCompleted)
	assert.Equal(t, []enum.SyncStatus{enum.SyncSeeding, enum.SyncSyncing}, h.publisher.statusTrail())
}

func TestStartSeed_BoundsFolderConcurrency(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())

	h.runSeed(t)

	assert.LessOrEqual(t, h.adapter.maxActive, 2)
}

func TestStartSeed_IllegalFromCompleted(t *testing.T) {
	h := newHarness(t, enum.SyncCompleted, defaultFolders())

	err := h.service.StartSeed(context.Background(), h.account.ID)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestStartSeed_ResumeSkipsSeededFolders(t *testing.T) {
	h := newHarness(t, enum.SyncSeeding, defaultFolders())

	// Inbox already seeded by a pass that crashed before finishing.
	require.NoError(t, h.states.Save(context.Background(), &models.FolderSyncState{
		AccountID:    h.account.ID,
		FolderType:   enum.FolderInbox,
		LastUID:      12,
		SyncedCount:  5,
		TotalCount:   12,
		SeedComplete: true,
	}))

	h.runSeed(t)

	assert.Equal(t, enum.SyncSyncing, h.status(t))
	assert.Zero(t, h.adapter.fetchCounts["INBOX"])
	assert.NotZero(t, h.adapter.fetchCounts["SENT"])
}

func TestStartSeed_TokenRefreshFailureMarksFailed(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	h.adapter.refreshOK = false

	err := h.service.StartSeed(context.Background(), h.account.ID)
	require.Error(t, err)

	assert.Equal(t, enum.SyncFailed, h.status(t))
	assert.Contains(t, h.logs.actions(), models.SyncLogActionError)
}

func TestStartSeed_ConnectionFailureMarksFailed(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	h.adapter.openErr = errors.New("dial tcp: connection refused")

	err := h.service.StartSeed(context.Background(), h.account.ID)
	require.Error(t, err)

	assert.Equal(t, enum.SyncFailed, h.status(t))
	account, err := h.accounts.GetByID(context.Background(), h.account.ID)
	require.NoError(t, err)
	require.NotNil(t, account.SyncError)
	assert.Contains(t, *account.SyncError, "connection refused")
	assert.Contains(t, h.logs.actions(), models.SyncLogActionError)
}

func TestContinueSync_ConnectionFailureMarksFailed(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	h.runSeed(t)
	h.adapter.openErr = errors.New("dial tcp: connection refused")

	err := h.service.ContinueSync(context.Background(), h.account.ID)
	require.Error(t, err)

	assert.Equal(t, enum.SyncFailed, h.status(t))
}

func TestFetchNewEmails_ConnectionFailureMarksFailed(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	h.runSeed(t)
	require.NoError(t, h.service.ContinueSync(context.Background(), h.account.ID))
	h.adapter.openErr = errors.New("dial tcp: connection refused")

	_, err := h.service.FetchNewEmails(context.Background(), h.account.ID)
	require.Error(t, err)

	assert.Equal(t, enum.SyncFailed, h.status(t))
	account, err := h.accounts.GetByID(context.Background(), h.account.ID)
	require.NoError(t, err)
	require.NotNil(t, account.SyncError)
}

func TestStartSeed_BusyLock(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	require.True(t, h.service.locks.TryAcquire(h.account.ID))
	defer h.service.locks.Release(h.account.ID)

	err := h.service.StartSeed(context.Background(), h.account.ID)
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestContinueSync_MirrorsEverythingAndCompletes(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	h.runSeed(t)

	require.NoError(t, h.service.ContinueSync(context.Background(), h.account.ID))

	assert.Equal(t, enum.SyncCompleted, h.status(t))

	// 12 + 5 + 0 + 3 + 7 + 2 across all folders, no duplicates.
	assert.Equal(t, 29, h.emails.count())

	account, err := h.accounts.GetByID(context.Background(), h.account.ID)
	require.NoError(t, err)
	assert.NotNil(t, account.InitialSyncCompletedAt)

	assert.Contains(t, h.logs.actions(), models.SyncLogActionChunkCompleted)
	assert.Contains(t, h.logs.actions(), models.SyncLogActionSyncCompleted)

	for _, folder := range enum.AllFolders() {
		state, err := h.states.Get(context.Background(), h.account.ID, folder)
		require.NoError(t, err)
		require.NotNil(t, state, "missing state for %s", folder)
		assert.GreaterOrEqual(t, state.SyncedCount, state.TotalCount, "folder %s not exhausted", folder)
	}
}

func TestContinueSync_MovedMessageStoredOnce(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())

	// Inbox message 5 was moved to trash server-side; trash uid 20 now
	// carries the inbox copy's message id.
	h.mailbox.shareMessageID("TRASH", 20, "<5@inbox.example.com>")

	h.runSeed(t)
	require.NoError(t, h.service.ContinueSync(context.Background(), h.account.ID))

	// One of the 29 messages exists in two folders under one message
	// id, so only the first-seen copy lands.
	assert.Equal(t, 28, h.emails.count())

	trashCopy, err := h.emails.GetByUID(context.Background(), h.account.ID, enum.FolderTrash, 20)
	require.NoError(t, err)
	require.NotNil(t, trashCopy)
	assert.Equal(t, "<5@inbox.example.com>", trashCopy.MessageID)

	// Trash was seeded before the inbox backfill reached uid 5.
	inboxCopy, err := h.emails.GetByUID(context.Background(), h.account.ID, enum.FolderInbox, 5)
	require.NoError(t, err)
	assert.Nil(t, inboxCopy)
}

func TestContinueSync_IllegalFromPending(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())

	err := h.service.ContinueSync(context.Background(), h.account.ID)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestContinueSync_ResumesAfterStorageFailure(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	h.runSeed(t)

	h.emails.failNext = assert.AnError
	err := h.service.ContinueSync(context.Background(), h.account.ID)
	require.Error(t, err)

	// Failure leaves the account mid-backfill, not failed.
	assert.Equal(t, enum.SyncSyncing, h.status(t))

	require.NoError(t, h.service.ContinueSync(context.Background(), h.account.ID))
	assert.Equal(t, enum.SyncCompleted, h.status(t))
	assert.Equal(t, 29, h.emails.count())
}

func TestContinueSync_SkipsUnfetchableMessage(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	h.runSeed(t)

	// Permanent per-message failure (fails all retry attempts).
	for i := 0; i < 3; i++ {
		h.adapter.failNextFetch("ARCHIVE", 3, assert.AnError)
	}

	require.NoError(t, h.service.ContinueSync(context.Background(), h.account.ID))

	assert.Equal(t, enum.SyncCompleted, h.status(t))
	assert.Equal(t, 28, h.emails.count())

	missing, err := h.emails.GetByUID(context.Background(), h.account.ID, enum.FolderArchive, 3)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFetchNewEmails_ReturnsNewCountThenZero(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	h.runSeed(t)
	require.NoError(t, h.service.ContinueSync(context.Background(), h.account.ID))

	h.mailbox.append("INBOX", 13, 14)

	count, err := h.service.FetchNewEmails(context.Background(), h.account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 31, h.emails.count())

	state, err := h.states.Get(context.Background(), h.account.ID, enum.FolderInbox)
	require.NoError(t, err)
	assert.Equal(t, uint32(14), state.LastUID)

	count, err = h.service.FetchNewEmails(context.Background(), h.account.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 31, h.emails.count())
}

func TestFetchNewEmails_IllegalBeforeCompleted(t *testing.T) {
	h := newHarness(t, enum.SyncSyncing, defaultFolders())

	_, err := h.service.FetchNewEmails(context.Background(), h.account.ID)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestMarkSyncFailedAndRetry(t *testing.T) {
	h := newHarness(t, enum.SyncSyncing, defaultFolders())

	require.NoError(t, h.service.MarkSyncFailed(context.Background(), h.account.ID, "imap connection refused"))
	assert.Equal(t, enum.SyncFailed, h.status(t))

	account, err := h.accounts.GetByID(context.Background(), h.account.ID)
	require.NoError(t, err)
	require.NotNil(t, account.SyncError)
	assert.Equal(t, "imap connection refused", *account.SyncError)

	require.NoError(t, h.service.RetrySync(context.Background(), h.account.ID))
	assert.Equal(t, enum.SyncPending, h.status(t))
}

func TestRetrySync_OnlyFromFailed(t *testing.T) {
	h := newHarness(t, enum.SyncCompleted, defaultFolders())

	err := h.service.RetrySync(context.Background(), h.account.ID)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestGetSyncProgress(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	h.runSeed(t)

	progress, err := h.service.GetSyncProgress(context.Background(), h.account.ID)
	require.NoError(t, err)

	assert.Equal(t, enum.SyncSyncing, progress.Status)
	assert.Equal(t, "backfill", progress.Phase)

	inbox := progress.Folders[enum.FolderInbox]
	assert.Equal(t, 12, inbox.Total)
	assert.Equal(t, 5, inbox.Synced)
	assert.Equal(t, 41, inbox.Percent)

	require.NoError(t, h.service.ContinueSync(context.Background(), h.account.ID))

	progress, err = h.service.GetSyncProgress(context.Background(), h.account.ID)
	require.NoError(t, err)
	assert.Equal(t, "incremental", progress.Phase)
	assert.Equal(t, 100, progress.OverallPercent)
}

func TestEmailReceivedEventsPublished(t *testing.T) {
	h := newHarness(t, enum.SyncPending, defaultFolders())
	h.runSeed(t)

	h.publisher.mu.Lock()
	seedEvents := len(h.publisher.received)
	h.publisher.mu.Unlock()
	assert.Equal(t, 13, seedEvents)
}
