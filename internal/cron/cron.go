package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/config"
	cron_config "github.com/customeros/mailsync/internal/cron/config"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
	syncservice "github.com/customeros/mailsync/services/sync"
)

// CONSTANTS
const (
	// GroupMailsync is the group for mailbox sync related jobs
	GroupMailsync = "mailsync"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupMailsync: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg      *config.Config
	log      logger.Logger
	cron     *cronv3.Cron
	k8s      kubernetes.Interface
	stopCh   chan struct{}
	jobIDs   map[string]cronv3.EntryID
	sync     interfaces.SyncService
	accounts interfaces.MailAccountRepository
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, syncService interfaces.SyncService, accounts interfaces.MailAccountRepository) *CronManager {
	return &CronManager{
		cfg:      cfg,
		log:      log,
		k8s:      k8s,
		stopCh:   make(chan struct{}),
		jobIDs:   make(map[string]cronv3.EntryID),
		sync:     syncService,
		accounts: accounts,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	// If k8s client is nil or we're in local development, start in local mode
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	// Create the leader election lock
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailsync-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	// Channel to track leader election errors
	errCh := make(chan error, 1)

	// Start leader election
	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		ctx := context.Background()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
		// Leader election seems to be working, continue normally
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	// Load cron config from environment variables
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	// Register heartbeat job
	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	// Add seed and backfill dispatch job
	if cronConfig.CronScheduleSyncTick != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleSyncTick, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMailsync].Lock()
			defer jobLocks.locks[GroupMailsync].Unlock()
			cm.dispatchSyncWork()
		})
		if err != nil {
			cm.log.Fatalf("Could not add sync tick cron job: %v", err)
		}
		cm.jobIDs["sync_tick"] = id
		cm.log.Infof("Registered sync tick job with schedule: %s", cronConfig.CronScheduleSyncTick)
	}

	// Add incremental fetch dispatch job
	if cronConfig.CronScheduleIncrementalTick != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleIncrementalTick, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMailsync].Lock()
			defer jobLocks.locks[GroupMailsync].Unlock()
			cm.dispatchIncrementalWork()
		})
		if err != nil {
			cm.log.Fatalf("Could not add incremental tick cron job: %v", err)
		}
		cm.jobIDs["incremental_tick"] = id
		cm.log.Infof("Registered incremental tick job with schedule: %s", cronConfig.CronScheduleIncrementalTick)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	// Create a new cron with seconds field enabled and panic recovery
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger), // Skip if still running
			cronv3.Recover(cronv3.DefaultLogger),            // Default recovery as backup
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// dispatchSyncWork advances every active account that still has seed or
// backfill work left. A busy account lock is not an error, the next tick
// picks the account up again.
func (cm *CronManager) dispatchSyncWork() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.dispatchSyncWork")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	accounts, err := cm.accounts.GetAccountsNeedingSync(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list accounts needing sync: %v", err)
		return
	}
	span.LogKV("accounts", len(accounts))

	for _, account := range accounts {
		var err error
		switch account.SyncStatus {
		case enum.SyncPending, enum.SyncSeeding:
			err = cm.sync.StartSeed(ctx, account.ID)
		case enum.SyncSyncing:
			err = cm.sync.ContinueSync(ctx, account.ID)
		default:
			continue
		}
		if err != nil {
			if errors.Is(err, syncservice.ErrSyncInProgress) {
				continue
			}
			tracing.TraceErr(span, err)
			cm.log.Errorf("Sync dispatch failed for account %s: %v", account.ID, err)
		}
	}
}

// dispatchIncrementalWork fetches new mail for completed accounts whose
// last sync is older than the configured interval.
func (cm *CronManager) dispatchIncrementalWork() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.dispatchIncrementalWork")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	staleBefore := utils.Now().Add(-cm.cfg.SyncConfig.IncrementalInterval)
	accounts, err := cm.accounts.GetAccountsForIncrementalSync(ctx, staleBefore)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list accounts for incremental sync: %v", err)
		return
	}
	span.LogKV("accounts", len(accounts))

	for _, account := range accounts {
		newCount, err := cm.sync.FetchNewEmails(ctx, account.ID)
		if err != nil {
			if errors.Is(err, syncservice.ErrSyncInProgress) {
				continue
			}
			tracing.TraceErr(span, err)
			cm.log.Errorf("Incremental fetch failed for account %s: %v", account.ID, err)
			continue
		}
		if newCount > 0 {
			cm.log.Infof("Fetched %d new emails for account %s", newCount, account.ID)
		}
	}
}
