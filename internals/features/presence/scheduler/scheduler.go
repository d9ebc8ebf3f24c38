// file: internals/features/presence/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"crecheku_backend/internals/features/presence/model"
	"crecheku_backend/internals/features/presence/service"
	"crecheku_backend/internals/helpers/dbtime"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Reconciler creates or repairs the sheet of one day. *service.Service implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, day time.Time) (service.Outcome, error)
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock = ClockFunc(time.Now)

type Config struct {
	Spec         string // five-field cron spec, evaluated in Location
	Location     *time.Location
	BackfillDays int // past days checked besides today
	DayTimeout   time.Duration
	Attempts     int
	Backoff      time.Duration
	Parallelism  int
}

func DefaultConfig() Config {
	return Config{
		Spec:         "5 0 * * *",
		Location:     time.UTC,
		BackfillDays: 14,
		DayTimeout:   30 * time.Second,
		Attempts:     3,
		Backoff:      2 * time.Second,
		Parallelism:  4,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Spec == "" {
		c.Spec = d.Spec
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.DayTimeout <= 0 {
		c.DayTimeout = d.DayTimeout
	}
	if c.Attempts < 1 {
		c.Attempts = 1
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	}
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	return c
}

type Scheduler struct {
	rec   Reconciler
	cal   Calendar
	clock Clock
	cfg   Config

	mu      sync.Mutex
	last    *RunReport
	cron    *cron.Cron
	closing bool
	runs    sync.WaitGroup // every Run, whoever triggered it
}

func New(rec Reconciler, cal Calendar, cfg Config) *Scheduler {
	if cal == nil {
		cal = EveryDay
	}
	return &Scheduler{rec: rec, cal: cal, clock: SystemClock, cfg: cfg.normalized()}
}

// WithClock swaps the time source (tests, replays).
func (s *Scheduler) WithClock(c Clock) *Scheduler {
	s.clock = c
	return s
}

func (s *Scheduler) Config() Config { return s.cfg }

// Today is the school-local day for the scheduler's clock.
func (s *Scheduler) Today() time.Time {
	return dbtime.Today(s.clock.Now(), s.cfg.Location)
}

/* =========================
   One day
========================= */

// RunOnce reconciles a single day in isolation: its own timeout, its own retries.
// Only retryable failures (roster/storage outages) are retried.
func (s *Scheduler) RunOnce(ctx context.Context, day time.Time) (res DayResult) {
	day = dbtime.DateOf(day)
	res.Day = dbtime.FormatDay(day)
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	if !s.cal.Tracked(day) {
		res.Outcome = DaySkipped
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DayTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		res.Attempts = attempt
		out, err := s.rec.Reconcile(ctx, day)
		if err == nil {
			res.Outcome = DayOutcome(out)
			return res
		}
		lastErr = err
		if !model.IsRetryable(err) || attempt == s.cfg.Attempts {
			break
		}
		log.Printf("[PRESENCE-SCHED] %s attempt %d/%d failed: %v", res.Day, attempt, s.cfg.Attempts, err)
		if !sleep(ctx, time.Duration(attempt)*s.cfg.Backoff) {
			lastErr = errors.Join(err, ctx.Err())
			break
		}
	}

	res.Outcome = DayFailed
	res.Reason = string(model.ReasonOf(lastErr))
	res.Error = lastErr.Error()
	log.Printf("[PRESENCE-SCHED] ❌ %s failed after %d attempt(s): %v", res.Day, res.Attempts, lastErr)
	return res
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

/* =========================
   Today + backfill window
========================= */

// Days lists today followed by the trailing window, newest first.
func (s *Scheduler) Days() []time.Time {
	today := s.Today()
	out := make([]time.Time, 0, s.cfg.BackfillDays+1)
	for i := 0; i <= s.cfg.BackfillDays; i++ {
		out = append(out, dbtime.AddDays(today, -i))
	}
	return out
}

// Run processes today and the backfill window. A failing day never stops the others.
func (s *Scheduler) Run(ctx context.Context, trigger string) *RunReport {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		log.Printf("[PRESENCE-SCHED] %s run refused: scheduler is stopping", trigger)
		now := s.clock.Now()
		return &RunReport{Trigger: trigger, Today: dbtime.FormatDay(s.Today()), StartedAt: now, FinishedAt: now}
	}
	s.runs.Add(1)
	s.mu.Unlock()
	defer s.runs.Done()

	days := s.Days()
	rep := &RunReport{
		Trigger:   trigger,
		Today:     dbtime.FormatDay(days[0]),
		StartedAt: s.clock.Now(),
		Days:      make([]DayResult, len(days)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, d := range days {
		g.Go(func() error {
			rep.Days[i] = s.RunOnce(gctx, d)
			return nil // per-day isolation: never cancel siblings
		})
	}
	_ = g.Wait()

	rep.FinishedAt = s.clock.Now()
	log.Printf("[PRESENCE-SCHED] run done: %s", rep.Summary())

	s.mu.Lock()
	s.last = rep
	s.mu.Unlock()
	return rep
}

// LastRun returns the most recent report, or nil before the first run.
func (s *Scheduler) LastRun() *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

/* =========================
   Cron trigger
========================= */

// Start registers Run on the configured cron spec. Overlapping ticks are skipped.
func (s *Scheduler) Start() error {
	logger := cron.PrintfLogger(log.Default())
	c := cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() {
		s.Run(context.Background(), "cron")
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	log.Printf("[PRESENCE-SCHED] started schedule=%q tz=%s backfill=%dd parallel=%d",
		s.cfg.Spec, s.cfg.Location, s.cfg.BackfillDays, s.cfg.Parallelism)
	return nil
}

// Stop halts the trigger and refuses new runs. The returned context is done once
// every in-flight run has finished, cron-fired or not.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	c := s.cron
	s.closing = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		if c != nil {
			<-c.Stop().Done()
		}
		s.runs.Wait()
	}()
	return ctx
}
