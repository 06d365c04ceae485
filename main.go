package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/opentracing/opentracing-go"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/customeros/mailsync/internal/config"
	"github.com/customeros/mailsync/internal/cron"
	"github.com/customeros/mailsync/internal/database"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services/adapters"
	"github.com/customeros/mailsync/services/events"
	"github.com/customeros/mailsync/services/oauth"
	"github.com/customeros/mailsync/services/retry"
	"github.com/customeros/mailsync/services/sync"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}
	if cfg == nil {
		log.Fatalf("config is empty")
	}

	// Setup the database
	db, err := database.NewConnection(cfg.DatabaseConfig)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}

	switch os.Args[1] {
	case "migrate":

		err := repository.Migrate(cfg.DatabaseConfig, db)
		if err != nil {
			log.Fatalf("Database migration failed: %v", err)
		}
		log.Println("Database migration completed successfully")

	case "worker":

		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		log.Println("Mailsync starting up...")

		appLogger := logger.NewAppLogger(cfg.Logger)
		appLogger.InitLogger()

		tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
		if err != nil {
			log.Fatalf("Could not initialize jaeger tracer: %v", err)
		}
		opentracing.SetGlobalTracer(tracer)
		defer closer.Close()

		repos := repository.InitRepositories(db, cfg.StorageConfig)

		tokenService := oauth.NewTokenService(cfg.OAuthConfig, repos.MailAccountRepository, appLogger)
		retrier := retry.NewExecutor(cfg.SyncConfig.RetryMaxAttempts, cfg.SyncConfig.RetryBaseBackoff)
		registry := adapters.NewRegistry(cfg.SyncConfig, tokenService, retrier, appLogger)

		publisher, err := events.NewPublisher(cfg.AppConfig.RabbitMQURL, appLogger)
		if err != nil {
			log.Fatalf("Event publisher initialization failed: %v", err)
		}
		defer publisher.Close()

		syncService := sync.NewSyncService(
			cfg.SyncConfig,
			repos.MailAccountRepository,
			repos.EmailRepository,
			repos.FolderSyncStateRepository,
			repos.SyncLogRepository,
			repos.EmailAttachmentRepository,
			registry,
			publisher,
			appLogger,
		)

		cronManager := cron.NewCronManager(cfg, appLogger, kubernetesClient(appLogger), syncService, repos.MailAccountRepository)
		if err := cronManager.Start(os.Getenv("POD_NAME"), os.Getenv("POD_NAMESPACE")); err != nil {
			log.Fatalf("Cron manager startup failed: %v", err)
		}

		log.Println("Mailsync is now running. Press Ctrl+C to exit.")

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		log.Println("Shutting down...")
		cronManager.Stop()
		log.Println("Shutdown complete")

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: mailsync <command>")
	fmt.Println("Commands:")
	fmt.Println("  migrate   Run database migrations")
	fmt.Println("  worker    Start the sync worker")
}

// kubernetesClient returns an in-cluster client, or nil outside a
// cluster so the cron manager runs in local mode.
func kubernetesClient(log logger.Logger) kubernetes.Interface {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("No in-cluster kubernetes config, running without leader election: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Could not create kubernetes client: %v", err)
		return nil
	}
	return client
}
