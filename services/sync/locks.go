package sync

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/customeros/mailsync/internal/utils"
)

// ErrSyncInProgress is returned when a phase operation is attempted on
// an account whose lock is held by another pass.
var ErrSyncInProgress = errors.New("sync already in progress for account")

// accountLocks is an in-process keyed mutex with TTL. A crashed holder
// never unlocks, so an expired hold may be stolen by the next acquirer.
type accountLocks struct {
	mu    sync.Mutex
	held  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

func newAccountLocks(ttl time.Duration) *accountLocks {
	return &accountLocks{
		held:  make(map[string]time.Time),
		ttl:   ttl,
		clock: utils.Now,
	}
}

// TryAcquire takes the account lock if it is free or its previous hold
// has outlived the TTL.
func (l *accountLocks) TryAcquire(accountID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if acquiredAt, ok := l.held[accountID]; ok {
		if now.Sub(acquiredAt) < l.ttl {
			return false
		}
	}
	l.held[accountID] = now
	return true
}

func (l *accountLocks) Release(accountID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, accountID)
}
