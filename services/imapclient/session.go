package imapclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

const (
	dialTimeout    = 30 * time.Second
	commandTimeout = 30 * time.Second
	fetchTimeout   = 60 * time.Second
)

// session wraps a logged-in IMAP client. Not safe for concurrent use;
// each folder worker opens its own session.
type session struct {
	c        *client.Client
	selected string
}

// Connect dials the account's IMAP endpoint, authenticates and returns
// a live session.
func Connect(ctx context.Context, account *models.MailAccount) (interfaces.MailSession, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapclient.Connect")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("server", account.ImapHost)
	span.SetTag("port", account.ImapPort)

	serverAddr := fmt.Sprintf("%s:%d", account.ImapHost, account.ImapPort)

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error

	switch account.ImapSecurity {
	case enum.EmailSecuritySSL, enum.EmailSecurityTLS:
		tlsConfig := &tls.Config{ServerName: account.ImapHost}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	case enum.EmailSecurityStartTLS:
		c, err = client.DialWithDialer(dialer, serverAddr)
		if err == nil {
			err = c.StartTLS(&tls.Config{ServerName: account.ImapHost})
		}
	default:
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
	}

	caps, err := c.Capability()
	if err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get capabilities: %w", err)
	}
	span.SetTag("server.capabilities", fmt.Sprintf("%v", caps))

	c.Timeout = commandTimeout
	if account.IsOAuth() {
		err = c.Authenticate(NewXOAuth2Client(account.EmailAddress, account.AccessToken))
	} else {
		err = c.Login(account.EmailAddress, account.Password)
	}
	if err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to authenticate as %s: %w", account.EmailAddress, err)
	}
	c.Timeout = 0 // No timeout for normal operations

	return &session{c: c}, nil
}

// examine opens a folder read-only, skipping the round trip when it is
// already selected.
func (s *session) examine(folder string) (*imap.MailboxStatus, error) {
	s.c.Timeout = commandTimeout
	defer func() { s.c.Timeout = 0 }()

	mbox, err := s.c.Select(folder, true)
	if err != nil {
		s.selected = ""
		return nil, fmt.Errorf("failed to examine folder %s: %w", folder, err)
	}
	s.selected = folder
	return mbox, nil
}

func (s *session) ensureSelected(folder string) error {
	if s.selected == folder {
		return nil
	}
	_, err := s.examine(folder)
	return err
}

func (s *session) ExamineFolder(ctx context.Context, folder string) (*interfaces.FolderStatus, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "session.ExamineFolder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagFolder(span, folder)

	mbox, err := s.examine(folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &interfaces.FolderStatus{
		Name:        mbox.Name,
		Messages:    mbox.Messages,
		UIDNext:     mbox.UidNext,
		UIDValidity: mbox.UidValidity,
	}, nil
}

func (s *session) Overview(ctx context.Context, folder string, rng interfaces.SeqRange) (map[int]interfaces.OverviewItem, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "session.Overview")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagFolder(span, folder)
	span.LogKV("range.from", rng.From, "range.to", rng.To, "range.uid", rng.UID)

	if err := s.ensureSelected(folder); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(rng.From, rng.To) // To == 0 means "*"

	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, imap.FetchInternalDate}

	messages := make(chan *imap.Message, 64)
	done := make(chan error, 1)

	s.c.Timeout = commandTimeout
	if rng.UID {
		go func() { done <- s.c.UidFetch(seqSet, items, messages) }()
	} else {
		go func() { done <- s.c.Fetch(seqSet, items, messages) }()
	}

	overview := make(map[int]interfaces.OverviewItem)
	for msg := range messages {
		overview[int(msg.SeqNum)] = interfaces.OverviewItem{
			UID: msg.Uid,
			Fields: map[string]interface{}{
				"uid":   msg.Uid,
				"flags": msg.Flags,
				"date":  msg.InternalDate,
			},
		}
	}

	err := <-done
	s.c.Timeout = 0
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("overview fetch failed: %w", err)
	}
	return overview, nil
}

func (s *session) UIDSearchSince(ctx context.Context, folder string, sinceUID uint32) ([]uint32, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "session.UIDSearchSince")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagFolder(span, folder)
	span.LogKV("since.uid", sinceUID)

	if err := s.ensureSelected(folder); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(sinceUID+1, 0)

	criteria := imap.NewSearchCriteria()
	criteria.Uid = seqSet

	s.c.Timeout = commandTimeout
	uids, err := s.c.UidSearch(criteria)
	s.c.Timeout = 0
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("uid search failed: %w", err)
	}
	return uids, nil
}

func (s *session) FetchMessage(ctx context.Context, folder string, uid uint32) (*interfaces.MailMessage, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "session.FetchMessage")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagFolder(span, folder)
	span.LogKV("uid", uid)

	if err := s.ensureSelected(folder); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	msgs, err := s.fetchFull(seqSet, true)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message uid %d not found in %s", uid, folder)
	}
	return msgs[0], nil
}

func (s *session) RecentMessages(ctx context.Context, folder string, count int) ([]*interfaces.MailMessage, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "session.RecentMessages")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagFolder(span, folder)
	span.LogKV("count", count)

	mbox, err := s.examine(folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(count) {
		from = mbox.Messages - uint32(count) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	msgs, err := s.fetchFull(seqSet, false)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	// Newest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// fetchFull retrieves full messages with a peek body section so the
// server never flags them as read.
func (s *session) fetchFull(seqSet *imap.SeqSet, byUID bool) ([]*interfaces.MailMessage, error) {
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchUid,
		imap.FetchFlags,
		imap.FetchEnvelope,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)

	s.c.Timeout = fetchTimeout
	if byUID {
		go func() { done <- s.c.UidFetch(seqSet, items, messages) }()
	} else {
		go func() { done <- s.c.Fetch(seqSet, items, messages) }()
	}

	var result []*interfaces.MailMessage
	for msg := range messages {
		mm := &interfaces.MailMessage{
			UID:      msg.Uid,
			SeqNum:   msg.SeqNum,
			Flags:    msg.Flags,
			Envelope: msg.Envelope,
		}
		if body := msg.GetBody(section); body != nil {
			raw, err := io.ReadAll(body)
			if err == nil {
				mm.Raw = raw
			}
		}
		result = append(result, mm)
	}

	err := <-done
	s.c.Timeout = 0
	if err != nil {
		return nil, fmt.Errorf("message fetch failed: %w", err)
	}
	return result, nil
}

func (s *session) Logout() error {
	return s.c.Logout()
}
