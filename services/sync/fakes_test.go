package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	sysync "sync"
	"time"

	go_imap "github.com/emersion/go-imap"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

// memMailbox is the remote side of the tests: folders keyed by provider
// folder name, each holding ascending UIDs.
type memMailbox struct {
	mu        sysync.Mutex
	folders   map[string][]uint32
	sharedIDs map[string]string // key folder/uid, overrides the message id
}

func newMemMailbox(folders map[string][]uint32) *memMailbox {
	return &memMailbox{folders: folders, sharedIDs: make(map[string]string)}
}

// shareMessageID gives folder/uid the same message id another copy of
// the message carries elsewhere, simulating a server-side move or copy.
func (m *memMailbox) shareMessageID(folder string, uid uint32, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sharedIDs[fmt.Sprintf("%s/%d", folder, uid)] = id
}

func (m *memMailbox) messageID(folder string, uid uint32) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.sharedIDs[fmt.Sprintf("%s/%d", folder, uid)]; ok {
		return id
	}
	return fmt.Sprintf("<%d@%s.example.com>", uid, strings.ToLower(strings.ReplaceAll(folder, " ", "-")))
}

func (m *memMailbox) uids(folder string) []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint32, len(m.folders[folder]))
	copy(out, m.folders[folder])
	return out
}

func (m *memMailbox) append(folder string, uids ...uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[folder] = append(m.folders[folder], uids...)
}

func rawMessage(uid uint32, messageID string) []byte {
	return []byte(fmt.Sprintf(
		"From: Alice <alice@example.com>\r\nTo: bob@example.com\r\nSubject: message %d\r\nMessage-ID: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nbody %d\r\n",
		uid, messageID, uid))
}

func (m *memMailbox) message(folder string, uid uint32) *interfaces.MailMessage {
	id := m.messageID(folder, uid)
	return &interfaces.MailMessage{
		UID: uid,
		Envelope: &go_imap.Envelope{
			Date:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(uid) * time.Minute),
			Subject:   fmt.Sprintf("message %d", uid),
			MessageId: id,
			From: []*go_imap.Address{
				{PersonalName: "Alice", MailboxName: "alice", HostName: "example.com"},
			},
			To: []*go_imap.Address{
				{MailboxName: "bob", HostName: "example.com"},
			},
		},
		Raw: rawMessage(uid, id),
	}
}

type memSession struct {
	mailbox *memMailbox
	adapter *fakeAdapter
}

func (s *memSession) ExamineFolder(ctx context.Context, folder string) (*interfaces.FolderStatus, error) {
	uids := s.mailbox.uids(folder)
	var uidNext uint32 = 1
	if len(uids) > 0 {
		uidNext = uids[len(uids)-1] + 1
	}
	return &interfaces.FolderStatus{
		Name:     folder,
		Messages: uint32(len(uids)),
		UIDNext:  uidNext,
	}, nil
}

func (s *memSession) Overview(ctx context.Context, folder string, rng interfaces.SeqRange) (map[int]interfaces.OverviewItem, error) {
	uids := s.mailbox.uids(folder)
	out := make(map[int]interfaces.OverviewItem)
	for i, uid := range uids {
		seq := uint32(i + 1)
		if rng.UID {
			if uid < rng.From || (rng.To != 0 && uid > rng.To) {
				continue
			}
		} else {
			if seq < rng.From || (rng.To != 0 && seq > rng.To) {
				continue
			}
		}
		out[int(seq)] = interfaces.OverviewItem{UID: uid}
	}
	return out, nil
}

func (s *memSession) UIDSearchSince(ctx context.Context, folder string, sinceUID uint32) ([]uint32, error) {
	var out []uint32
	for _, uid := range s.mailbox.uids(folder) {
		if uid > sinceUID {
			out = append(out, uid)
		}
	}
	return out, nil
}

func (s *memSession) FetchMessage(ctx context.Context, folder string, uid uint32) (*interfaces.MailMessage, error) {
	s.adapter.countFetch(folder)
	if err := s.adapter.fetchErrFor(folder, uid); err != nil {
		return nil, err
	}
	for _, u := range s.mailbox.uids(folder) {
		if u == uid {
			return s.mailbox.message(folder, uid), nil
		}
	}
	return nil, fmt.Errorf("uid %d not in %s", uid, folder)
}

func (s *memSession) RecentMessages(ctx context.Context, folder string, count int) ([]*interfaces.MailMessage, error) {
	uids := s.mailbox.uids(folder)
	if len(uids) > count {
		uids = uids[len(uids)-count:]
	}
	out := make([]*interfaces.MailMessage, 0, len(uids))
	for i := len(uids) - 1; i >= 0; i-- {
		out = append(out, s.mailbox.message(folder, uids[i]))
	}
	return out, nil
}

func (s *memSession) Logout() error {
	s.adapter.sessionClosed()
	return nil
}

// fakeAdapter implements ProviderAdapter against a memMailbox and
// tracks concurrency and fetch counts for assertions.
type fakeAdapter struct {
	mu          sysync.Mutex
	mailbox     *memMailbox
	provider    enum.EmailProvider
	maxParallel int
	refreshOK   bool

	active      int
	maxActive   int
	openErr     error
	fetchCounts map[string]int
	fetchErrs   map[string]error // key folder/uid
}

func newFakeAdapter(mailbox *memMailbox, maxParallel int) *fakeAdapter {
	return &fakeAdapter{
		mailbox:     mailbox,
		provider:    enum.ProviderCustom,
		maxParallel: maxParallel,
		refreshOK:   true,
		fetchCounts: make(map[string]int),
		fetchErrs:   make(map[string]error),
	}
}

func (a *fakeAdapter) countFetch(folder string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetchCounts[folder]++
}

func (a *fakeAdapter) fetchErrFor(folder string, uid uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := fmt.Sprintf("%s/%d", folder, uid)
	if err, ok := a.fetchErrs[key]; ok {
		delete(a.fetchErrs, key)
		return err
	}
	return nil
}

func (a *fakeAdapter) failNextFetch(folder string, uid uint32, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetchErrs[fmt.Sprintf("%s/%d", folder, uid)] = err
}

func (a *fakeAdapter) sessionClosed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active--
}

func (a *fakeAdapter) Provider() enum.EmailProvider { return a.provider }

func (a *fakeAdapter) RefreshCredentialsIfNeeded(ctx context.Context, account *models.MailAccount) bool {
	return a.refreshOK
}

func (a *fakeAdapter) OpenSession(ctx context.Context, account *models.MailAccount) (interfaces.MailSession, error) {
	a.mu.Lock()
	if err := a.openErr; err != nil {
		a.mu.Unlock()
		return nil, err
	}
	a.active++
	if a.active > a.maxActive {
		a.maxActive = a.active
	}
	a.mu.Unlock()
	return &memSession{mailbox: a.mailbox, adapter: a}, nil
}

func (a *fakeAdapter) FolderName(folderType enum.FolderType) string {
	return strings.ToUpper(folderType.String())
}

func (a *fakeAdapter) FolderMapping() map[enum.FolderType]string {
	mapping := make(map[enum.FolderType]string)
	for _, ft := range enum.AllFolders() {
		mapping[ft] = a.FolderName(ft)
	}
	return mapping
}

func (a *fakeAdapter) ExtractUID(key int, item interfaces.OverviewItem) (uint32, bool) {
	if item.UID > 0 {
		return item.UID, true
	}
	if key > 0 {
		return uint32(key), true
	}
	return 0, false
}

func (a *fakeAdapter) LatestUIDs(ctx context.Context, session interfaces.MailSession, folder string, count int) ([]uint32, error) {
	uids := a.mailbox.uids(folder)
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if len(uids) > count {
		uids = uids[:count]
	}
	return uids, nil
}

func (a *fakeAdapter) UIDRange(ctx context.Context, session interfaces.MailSession, folder string, start, end uint32) ([]uint32, error) {
	overview, err := session.Overview(ctx, folder, interfaces.SeqRange{From: start, To: end})
	if err != nil {
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

func (a *fakeAdapter) FetchLatestMessages(ctx context.Context, session interfaces.MailSession, folder string, count int) ([]*interfaces.MailMessage, error) {
	uids, err := a.LatestUIDs(ctx, session, folder, count)
	if err != nil {
		return nil, err
	}
	var out []*interfaces.MailMessage
	for _, uid := range uids {
		msg, err := session.FetchMessage(ctx, folder, uid)
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (a *fakeAdapter) FetchMessageByUID(ctx context.Context, session interfaces.MailSession, folder string, uid uint32) (*interfaces.MailMessage, error) {
	return session.FetchMessage(ctx, folder, uid)
}

func (a *fakeAdapter) MaxParallelFolders() int { return a.maxParallel }

type fakeResolver struct {
	adapter interfaces.ProviderAdapter
}

func (r *fakeResolver) Get(provider enum.EmailProvider) interfaces.ProviderAdapter {
	return r.adapter
}

// In-memory repositories.

type memAccounts struct {
	mu       sysync.Mutex
	accounts map[string]*models.MailAccount
}

func newMemAccounts(accounts ...*models.MailAccount) *memAccounts {
	m := &memAccounts{accounts: make(map[string]*models.MailAccount)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *memAccounts) Create(ctx context.Context, account *models.MailAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *memAccounts) GetByID(ctx context.Context, id string) (*models.MailAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (m *memAccounts) GetAccountsNeedingSync(ctx context.Context) ([]*models.MailAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.MailAccount
	for _, a := range m.accounts {
		if a.IsActive && a.SyncStatus.NeedsSync() {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memAccounts) GetAccountsForIncrementalSync(ctx context.Context, staleBefore time.Time) ([]*models.MailAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.MailAccount
	for _, a := range m.accounts {
		if a.IsActive && a.SyncStatus == enum.SyncCompleted {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memAccounts) UpdateSyncStatus(ctx context.Context, id string, status enum.SyncStatus, syncError *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}
	a.SyncStatus = status
	a.SyncError = syncError
	return nil
}

func (m *memAccounts) MarkSynced(ctx context.Context, id string, initialSyncCompleted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}
	now := time.Now().UTC()
	a.LastSyncAt = &now
	if initialSyncCompleted {
		a.InitialSyncCompletedAt = &now
	}
	return nil
}

func (m *memAccounts) SaveTokens(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		a.AccessToken = accessToken
		a.TokenExpiresAt = &expiresAt
	}
	return nil
}

func (m *memAccounts) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		a.IsActive = false
	}
	return nil
}

type memStates struct {
	mu     sysync.Mutex
	states map[string]*models.FolderSyncState
}

func newMemStates() *memStates {
	return &memStates{states: make(map[string]*models.FolderSyncState)}
}

func (m *memStates) key(accountID string, folder enum.FolderType) string {
	return accountID + "/" + folder.String()
}

func (m *memStates) Get(ctx context.Context, accountID string, folder enum.FolderType) (*models.FolderSyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[m.key(accountID, folder)]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (m *memStates) GetForAccount(ctx context.Context, accountID string) ([]*models.FolderSyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.FolderSyncState
	for _, s := range m.states {
		if s.AccountID == accountID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FolderType.SyncPriority() < out[j].FolderType.SyncPriority()
	})
	return out, nil
}

func (m *memStates) Save(ctx context.Context, state *models.FolderSyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.states[m.key(state.AccountID, state.FolderType)] = &copied
	return nil
}

func (m *memStates) DeleteForAccount(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, s := range m.states {
		if s.AccountID == accountID {
			delete(m.states, k)
		}
	}
	return nil
}

type memEmails struct {
	mu         sysync.Mutex
	rows       map[string]*models.Email // accountID/folder/uid
	messageIDs map[string]bool          // accountID/messageID
	states     *memStates
	failNext   error
}

func newMemEmails(states *memStates) *memEmails {
	return &memEmails{
		rows:       make(map[string]*models.Email),
		messageIDs: make(map[string]bool),
		states:     states,
	}
}

func (m *memEmails) key(accountID string, folder enum.FolderType, uid uint32) string {
	return fmt.Sprintf("%s/%s/%d", accountID, folder, uid)
}

func (m *memEmails) insert(email *models.Email) {
	key := m.key(email.AccountID, email.FolderType, email.ImapUID)
	if _, exists := m.rows[key]; exists {
		return
	}
	if email.MessageID != "" {
		msgKey := email.AccountID + "/" + email.MessageID
		if m.messageIDs[msgKey] {
			return
		}
		m.messageIDs[msgKey] = true
	}
	m.rows[key] = email
}

func (m *memEmails) Create(ctx context.Context, email *models.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(email)
	return nil
}

func (m *memEmails) GetByID(ctx context.Context, id string) (*models.Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (m *memEmails) GetByUID(ctx context.Context, accountID string, folder enum.FolderType, uid uint32) (*models.Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.rows[m.key(accountID, folder, uid)]; ok {
		return e, nil
	}
	return nil, nil
}

func (m *memEmails) CountByFolder(ctx context.Context, accountID string, folder enum.FolderType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, e := range m.rows {
		if e.AccountID == accountID && e.FolderType == folder {
			count++
		}
	}
	return count, nil
}

func (m *memEmails) ListByFolder(ctx context.Context, accountID string, folder enum.FolderType, limit, offset int) ([]*models.Email, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Email
	for _, e := range m.rows {
		if e.AccountID == accountID && e.FolderType == folder {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memEmails) StoreChunk(ctx context.Context, emails []*models.Email, state *models.FolderSyncState) error {
	m.mu.Lock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		m.mu.Unlock()
		return err
	}
	for _, e := range emails {
		m.insert(e)
	}
	m.mu.Unlock()
	return m.states.Save(ctx, state)
}

func (m *memEmails) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memLogs struct {
	mu      sysync.Mutex
	entries []*models.SyncLog
}

func (m *memLogs) Append(ctx context.Context, entry *models.SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memLogs) GetForAccount(ctx context.Context, accountID string, limit int) ([]*models.SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SyncLog
	for _, e := range m.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLogs) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type memAttachments struct {
	mu      sysync.Mutex
	records []*models.EmailAttachment
}

func (m *memAttachments) Store(ctx context.Context, attachment *models.EmailAttachment, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, attachment)
	return nil
}

func (m *memAttachments) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	return nil, nil
}

func (m *memAttachments) GetContent(ctx context.Context, attachment *models.EmailAttachment) ([]byte, error) {
	return nil, nil
}

type memPublisher struct {
	mu       sysync.Mutex
	received []dto.EmailReceived
	statuses []dto.SyncStatusChanged
}

func (m *memPublisher) PublishEmailReceived(ctx context.Context, event dto.EmailReceived) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, event)
	return nil
}

func (m *memPublisher) PublishSyncStatusChanged(ctx context.Context, event dto.SyncStatusChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, event)
	return nil
}

func (m *memPublisher) Close() error { return nil }

func (m *memPublisher) statusTrail() []enum.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]enum.SyncStatus, 0, len(m.statuses))
	for _, s := range m.statuses {
		out = append(out, s.Status)
	}
	return out
}
