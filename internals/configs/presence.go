package configs

import (
	"log"
	"strings"
	"time"

	"crecheku_backend/internals/features/presence/scheduler"
	"crecheku_backend/internals/helpers/dbtime"
)

// PresenceConfig is the worker configuration, read from PRESENCE_* env.
type PresenceConfig struct {
	CronSpec     string
	Location     *time.Location
	BackfillDays int
	OffDays      []time.Weekday
	Holidays     []time.Time

	DayTimeout   time.Duration
	DayAttempts  int
	RetryBackoff time.Duration
	Parallelism  int

	AttachmentPrefix   string
	AttachmentMaxBytes int

	OpsPort string
}

func LoadPresenceConfig() PresenceConfig {
	cfg := PresenceConfig{
		CronSpec:     GetEnv("PRESENCE_CRON", "5 0 * * *"),
		Location:     dbtime.LoadLocation(GetEnv("PRESENCE_TIMEZONE", "Asia/Jakarta")),
		BackfillDays: GetEnvInt("PRESENCE_BACKFILL_DAYS", 14),

		DayTimeout:   GetEnvDuration("PRESENCE_DAY_TIMEOUT", 30*time.Second),
		DayAttempts:  GetEnvInt("PRESENCE_DAY_ATTEMPTS", 3),
		RetryBackoff: GetEnvDuration("PRESENCE_RETRY_BACKOFF", 2*time.Second),
		Parallelism:  GetEnvInt("PRESENCE_PARALLELISM", 4),

		AttachmentPrefix:   strings.Trim(GetEnv("PRESENCE_ATTACHMENT_PREFIX", "presence/justifications"), "/"),
		AttachmentMaxBytes: GetEnvInt("PRESENCE_ATTACHMENT_MAX_BYTES", 5<<20),

		OpsPort: GetEnv("OPS_PORT", GetEnv("PORT", "3000")),
	}

	// PRESENCE_RUN_AT ("HH:MM") is the friendly alternative to a cron spec
	if at := GetEnv("PRESENCE_RUN_AT"); at != "" {
		if tod, err := dbtime.ParseTod(at); err == nil {
			cfg.CronSpec = tod.CronSpec()
		} else {
			log.Printf("⚠️ PRESENCE_RUN_AT: %v, keeping %q", err, cfg.CronSpec)
		}
	}

	off, err := scheduler.ParseWeekdays(GetEnv("PRESENCE_OFF_DAYS", "sat,sun"))
	if err != nil {
		log.Printf("⚠️ PRESENCE_OFF_DAYS: %v, using sat,sun", err)
		off = []time.Weekday{time.Saturday, time.Sunday}
	}
	cfg.OffDays = off

	holidays, err := dbtime.ParseDays(GetEnv("PRESENCE_HOLIDAYS"))
	if err != nil {
		log.Printf("⚠️ PRESENCE_HOLIDAYS: %v, ignoring list", err)
		holidays = nil
	}
	cfg.Holidays = holidays

	if cfg.BackfillDays < 0 {
		cfg.BackfillDays = 0
	}
	if cfg.DayAttempts < 1 {
		cfg.DayAttempts = 1
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.AttachmentMaxBytes <= 0 {
		cfg.AttachmentMaxBytes = 5 << 20
	}
	return cfg
}

func (c PresenceConfig) Scheduler() scheduler.Config {
	return scheduler.Config{
		Spec:         c.CronSpec,
		Location:     c.Location,
		BackfillDays: c.BackfillDays,
		DayTimeout:   c.DayTimeout,
		Attempts:     c.DayAttempts,
		Backoff:      c.RetryBackoff,
		Parallelism:  c.Parallelism,
	}
}

func (c PresenceConfig) Calendar() scheduler.Calendar {
	return scheduler.NewWeekdayCalendar(c.OffDays, c.Holidays)
}
