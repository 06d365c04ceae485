package interfaces

import (
	"context"

	"github.com/customeros/mailsync/dto"
)

type EventPublisher interface {
	PublishEmailReceived(ctx context.Context, event dto.EmailReceived) error
	PublishSyncStatusChanged(ctx context.Context, event dto.SyncStatusChanged) error
	Close() error
}
