package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

// ProviderAdapter translates account credentials into live sessions and
// normalizes provider quirks (folder naming, overview response shapes).
// Adapters are stateless; all sync-state knowledge lives in the
// orchestrator.
type ProviderAdapter interface {
	Provider() enum.EmailProvider

	// RefreshCredentialsIfNeeded refreshes an expiring OAuth token pair
	// before login. It returns false, without an error, when the refresh
	// fails so the caller can mark the account failed instead of
	// attempting a login doomed to fail. Password accounts always
	// return true.
	RefreshCredentialsIfNeeded(ctx context.Context, account *models.MailAccount) bool

	// OpenSession dials, authenticates and returns a live session.
	OpenSession(ctx context.Context, account *models.MailAccount) (MailSession, error)

	// FolderName maps a logical folder type to the provider-specific
	// folder string; unmapped types fall back to the upper-cased
	// literal.
	FolderName(folderType enum.FolderType) string
	FolderMapping() map[enum.FolderType]string

	// ExtractUID resolves the identifier from an overview entry, falling
	// back to an integer collection key when the item itself carries
	// none.
	ExtractUID(key int, item OverviewItem) (uint32, bool)

	// LatestUIDs returns up to count identifiers, newest first. An empty
	// folder yields an empty slice, not an error.
	LatestUIDs(ctx context.Context, session MailSession, folder string, count int) ([]uint32, error)

	// UIDRange resolves identifiers for a sequence range, for
	// deterministic backfill chunking.
	UIDRange(ctx context.Context, session MailSession, folder string, start, end uint32) ([]uint32, error)

	// FetchLatestMessages fetches the newest count full messages.
	// Per-message fetch failures are logged and skipped.
	FetchLatestMessages(ctx context.Context, session MailSession, folder string, count int) ([]*MailMessage, error)

	// FetchMessageByUID fetches one message with retry.
	FetchMessageByUID(ctx context.Context, session MailSession, folder string, uid uint32) (*MailMessage, error)

	// MaxParallelFolders bounds concurrent folder connections for this
	// provider; exceeding it risks throttling or temporary bans.
	MaxParallelFolders() int
}
