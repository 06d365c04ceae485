package sync

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/tracing"
)

// GetSyncProgress derives a progress view from the watermark table. It
// is read-only; the watermark rows stay the single source of truth.
func (s *Service) GetSyncProgress(ctx context.Context, accountID string) (*interfaces.SyncProgress, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.GetSyncProgress")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	states, err := s.folderStates.GetForAccount(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	progress := &interfaces.SyncProgress{
		Status:  account.SyncStatus,
		Phase:   phaseFor(account.SyncStatus),
		Folders: make(map[enum.FolderType]interfaces.FolderProgress, len(states)),
	}

	for _, state := range states {
		total := state.TotalCount
		if s.cfg.BackfillMaxPerFolder > 0 && total > s.cfg.BackfillMaxPerFolder {
			total = s.cfg.BackfillMaxPerFolder
		}
		synced := state.SyncedCount
		if synced > total {
			synced = total
		}

		percent := 100
		if total > 0 {
			percent = synced * 100 / total
		}

		progress.Folders[state.FolderType] = interfaces.FolderProgress{
			Total:   total,
			Synced:  synced,
			Percent: percent,
		}
		progress.TotalEmails += total
		progress.SyncedEmails += synced
	}

	if progress.TotalEmails > 0 {
		progress.OverallPercent = progress.SyncedEmails * 100 / progress.TotalEmails
	} else if account.SyncStatus == enum.SyncCompleted {
		progress.OverallPercent = 100
	}

	return progress, nil
}

func phaseFor(status enum.SyncStatus) string {
	switch status {
	case enum.SyncPending:
		return "pending"
	case enum.SyncSeeding:
		return "seed"
	case enum.SyncSyncing:
		return "backfill"
	case enum.SyncCompleted:
		return "incremental"
	case enum.SyncFailed:
		return "failed"
	default:
		return string(status)
	}
}
