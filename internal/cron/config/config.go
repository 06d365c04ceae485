package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Seed and backfill dispatch, every minute
	CronScheduleSyncTick string `env:"CRON_SCHEDULE_SYNC_TICK" envDefault:"30 * * * * *"`
	// Incremental fetch dispatch, every 5 minutes
	CronScheduleIncrementalTick string `env:"CRON_SCHEDULE_INCREMENTAL_TICK" envDefault:"0 */5 * * * *"`
}
