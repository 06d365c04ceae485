package interfaces

import (
	"context"

	"github.com/emersion/go-imap"
)

// FolderStatus is the result of examining a folder read-only.
type FolderStatus struct {
	Name        string
	Messages    uint32
	UIDNext     uint32
	UIDValidity uint32
}

// SeqRange addresses a message range. To == 0 means "*" (no upper
// bound). UID selects UID addressing instead of sequence numbers.
type SeqRange struct {
	From uint32
	To   uint32
	UID  bool
}

// OverviewItem is one entry of a lightweight per-message summary
// response. Depending on provider and library version the identifier
// arrives as the UID attribute, as a keyed field, or not at all, in
// which case the collection key of the enclosing map carries it.
type OverviewItem struct {
	UID    uint32
	Fields map[string]interface{}
}

// MailMessage is a fully fetched message. Raw holds the RFC822 payload
// obtained with a peek fetch, so mirroring never marks mail read on the
// server.
type MailMessage struct {
	UID      uint32
	SeqNum   uint32
	Flags    []string
	Envelope *imap.Envelope
	Raw      []byte
}

// MailSession is a live connection to one mailbox. Implementations are
// not safe for concurrent use; the orchestrator opens one session per
// folder worker.
type MailSession interface {
	// ExamineFolder opens a folder read-only and reports its extent.
	ExamineFolder(ctx context.Context, folder string) (*FolderStatus, error)
	// Overview returns per-message summaries for a range, keyed by the
	// collection key the server responded with.
	Overview(ctx context.Context, folder string, rng SeqRange) (map[int]OverviewItem, error)
	// UIDSearchSince returns all UIDs strictly greater than sinceUID.
	UIDSearchSince(ctx context.Context, folder string, sinceUID uint32) ([]uint32, error)
	// FetchMessage fetches a single message by UID in peek mode.
	FetchMessage(ctx context.Context, folder string, uid uint32) (*MailMessage, error)
	// RecentMessages fetches the newest count messages by sequence
	// position, for providers whose overview responses are unreliable.
	RecentMessages(ctx context.Context, folder string, count int) ([]*MailMessage, error)
	Logout() error
}
