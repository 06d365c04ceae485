package config

import (
	"time"

	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/tracing"
)

type AppConfig struct {
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILSYNC_POSTGRES_HOST,required"`
	Port            string `env:"MAILSYNC_POSTGRES_PORT,required"`
	User            string `env:"MAILSYNC_POSTGRES_USER,required"`
	DBName          string `env:"MAILSYNC_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSYNC_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSYNC_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"MAILSYNC_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"MAILSYNC_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"MAILSYNC_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSYNC_POSTGRES_SSL_MODE" envDefault:"require"`
}

// SyncConfig covers the recognized tuning knobs of the sync engine.
type SyncConfig struct {
	SeedCount            int               `env:"EMAIL_SEED_COUNT" envDefault:"50"`
	ChunkSize            int               `env:"EMAIL_CHUNK_SIZE" envDefault:"100"`
	BackfillMaxPerFolder int               `env:"EMAIL_BACKFILL_MAX_PER_FOLDER" envDefault:"50000"`
	MaxParallelGmail     int               `env:"EMAIL_MAX_PARALLEL_GMAIL" envDefault:"2"`
	MaxParallelOutlook   int               `env:"EMAIL_MAX_PARALLEL_OUTLOOK" envDefault:"2"`
	MaxParallelCustom    int               `env:"EMAIL_MAX_PARALLEL_CUSTOM" envDefault:"3"`
	RetryMaxAttempts     int               `env:"EMAIL_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseBackoff     time.Duration     `env:"EMAIL_RETRY_BASE_BACKOFF" envDefault:"1s"`
	OperationTimeout     time.Duration     `env:"EMAIL_OPERATION_TIMEOUT" envDefault:"30s"`
	IncrementalInterval  time.Duration     `env:"EMAIL_INCREMENTAL_INTERVAL" envDefault:"5m"`
	LockTTL              time.Duration     `env:"EMAIL_SYNC_LOCK_TTL" envDefault:"10m"`
	GmailFolders         map[string]string `env:"EMAIL_IMAP_FOLDERS_GMAIL" envSeparator:","`
	OutlookFolders       map[string]string `env:"EMAIL_IMAP_FOLDERS_OUTLOOK" envSeparator:","`
	CustomFolders        map[string]string `env:"EMAIL_IMAP_FOLDERS_CUSTOM" envSeparator:","`
}

type OAuthConfig struct {
	GoogleTokenURL        string `env:"OAUTH_GOOGLE_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
	GoogleClientID        string `env:"OAUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `env:"OAUTH_GOOGLE_CLIENT_SECRET"`
	MicrosoftTokenURL     string `env:"OAUTH_MICROSOFT_TOKEN_URL" envDefault:"https://login.microsoftonline.com/common/oauth2/v2.0/token"`
	MicrosoftClientID     string `env:"OAUTH_MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `env:"OAUTH_MICROSOFT_CLIENT_SECRET"`
}

type StorageConfig struct {
	AccessKeyID      string `env:"STORAGE_ACCESS_KEY_ID"`
	AccessKeySecret  string `env:"STORAGE_ACCESS_KEY_SECRET"`
	Region           string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Endpoint         string `env:"STORAGE_ENDPOINT"`
	AttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT" envDefault:"attachments"`
}

type Config struct {
	AppConfig      *AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *DatabaseConfig
	SyncConfig     *SyncConfig
	OAuthConfig    *OAuthConfig
	StorageConfig  *StorageConfig
}
