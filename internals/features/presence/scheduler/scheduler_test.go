package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crecheku_backend/internals/features/presence/model"
	"crecheku_backend/internals/features/presence/repository"
	"crecheku_backend/internals/features/presence/roster"
	"crecheku_backend/internals/features/presence/service"
	"crecheku_backend/internals/helpers/dbtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday 2024-09-04 09:00 UTC.
var fixedNow = time.Date(2024, 9, 4, 9, 0, 0, 0, time.UTC)

func fixedClock() Clock { return ClockFunc(func() time.Time { return fixedNow }) }

func fastConfig() Config {
	return Config{
		Location:     time.UTC,
		BackfillDays: 3,
		DayTimeout:   time.Second,
		Attempts:     3,
		Backoff:      time.Millisecond,
		Parallelism:  2,
	}
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(day string, call int) (service.Outcome, error)
}

func (f *fakeReconciler) Reconcile(_ context.Context, day time.Time) (service.Outcome, error) {
	key := dbtime.FormatDay(day)
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[key]++
	n := f.calls[key]
	f.mu.Unlock()
	if f.fn == nil {
		return service.OutcomeCreated, nil
	}
	return f.fn(key, n)
}

func TestDaysWindow(t *testing.T) {
	s := New(&fakeReconciler{}, nil, fastConfig()).WithClock(fixedClock())
	var got []string
	for _, d := range s.Days() {
		got = append(got, dbtime.FormatDay(d))
	}
	assert.Equal(t, []string{"2024-09-04", "2024-09-03", "2024-09-02", "2024-09-01"}, got)
}

func TestTodayFollowsLocation(t *testing.T) {
	cfg := fastConfig()
	cfg.Location = time.FixedZone("WIB", 7*3600)
	late := time.Date(2024, 9, 4, 20, 0, 0, 0, time.UTC) // already 5 Sept in WIB
	s := New(&fakeReconciler{}, nil, cfg).WithClock(ClockFunc(func() time.Time { return late }))
	assert.Equal(t, "2024-09-05", dbtime.FormatDay(s.Today()))
}

func TestRunOnceSkipsUntrackedDay(t *testing.T) {
	rec := &fakeReconciler{}
	cal := NewWeekdayCalendar([]time.Weekday{time.Saturday, time.Sunday}, nil)
	s := New(rec, cal, fastConfig())

	res := s.RunOnce(context.Background(), time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)) // Sunday
	assert.Equal(t, DaySkipped, res.Outcome)
	assert.Zero(t, res.Attempts)
	assert.Empty(t, rec.calls)
}

func TestRunOnceRetriesUpstream(t *testing.T) {
	rec := &fakeReconciler{fn: func(_ string, call int) (service.Outcome, error) {
		if call < 3 {
			return "", model.Upstream(model.ReasonRosterUnavailable, "down", nil)
		}
		return service.OutcomeCreated, nil
	}}
	s := New(rec, nil, fastConfig())

	res := s.RunOnce(context.Background(), fixedNow)
	assert.Equal(t, DayCreated, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
}

func TestRunOnceDoesNotRetryNonRetryable(t *testing.T) {
	rec := &fakeReconciler{fn: func(string, int) (service.Outcome, error) {
		return "", model.Internal(model.ReasonInvariantViolation, "broken", nil)
	}}
	s := New(rec, nil, fastConfig())

	res := s.RunOnce(context.Background(), fixedNow)
	assert.Equal(t, DayFailed, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, string(model.ReasonInvariantViolation), res.Reason)
}

func TestRunOnceGivesUpAfterAttempts(t *testing.T) {
	rec := &fakeReconciler{fn: func(string, int) (service.Outcome, error) {
		return "", model.Upstream(model.ReasonRosterUnavailable, "down", errors.New("dial tcp"))
	}}
	cfg := fastConfig()
	cfg.Attempts = 2
	s := New(rec, nil, cfg)

	res := s.RunOnce(context.Background(), fixedNow)
	assert.Equal(t, DayFailed, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.Contains(t, res.Error, "dial tcp")
}

func TestRunIsolatesFailingDay(t *testing.T) {
	rec := &fakeReconciler{fn: func(day string, _ int) (service.Outcome, error) {
		if day == "2024-09-03" {
			return "", model.Upstream(model.ReasonRosterUnavailable, "down", nil)
		}
		return service.OutcomeCreated, nil
	}}
	s := New(rec, nil, fastConfig()).WithClock(fixedClock())

	rep := s.Run(context.Background(), "test")
	require.Len(t, rep.Days, 4)
	assert.Equal(t, "2024-09-04", rep.Today)
	assert.Equal(t, DayFailed, rep.Day("2024-09-03").Outcome)
	assert.Equal(t, 3, rep.Count(DayCreated))
	assert.True(t, rep.Failed())
	assert.Same(t, rep, s.LastRun())
}

func TestRunReportsNeedsAttentionWithoutFailing(t *testing.T) {
	rec := &fakeReconciler{fn: func(day string, _ int) (service.Outcome, error) {
		if day == "2024-09-02" {
			return service.OutcomeNeedsAttention, nil
		}
		return service.OutcomeExisting, nil
	}}
	s := New(rec, nil, fastConfig()).WithClock(fixedClock())

	rep := s.Run(context.Background(), "test")
	res := rep.Day("2024-09-02")
	require.NotNil(t, res)
	assert.Equal(t, DayNeedsAttention, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, rep.Failed())
	assert.Contains(t, rep.Summary(), "attention=1")
}

// Backfill isolation end to end: the roster fails while d1 is processed, d2 still gets its sheet.
func TestBackfillIsolationWithRealService(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	flaky := roster.Func(func(context.Context) ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, errors.New("roster offline")
		}
		return []string{"A", "B", "C"}, nil
	})

	store := repository.NewMemoryStore()
	svc := service.New(store, flaky, nil)

	cfg := fastConfig()
	cfg.BackfillDays = 1
	cfg.Attempts = 1
	cfg.Parallelism = 1
	s := New(svc, nil, cfg).WithClock(fixedClock())

	rep := s.Run(context.Background(), "test")
	assert.Equal(t, DayFailed, rep.Day("2024-09-04").Outcome)
	assert.Equal(t, DayCreated, rep.Day("2024-09-03").Outcome)

	_, err := svc.GetSheet(context.Background(), time.Date(2024, 9, 4, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, model.ErrNotFound)

	v, err := svc.GetSheet(context.Background(), time.Date(2024, 9, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, v.Records, 3)

	// the next run heals the failed day and leaves the other one alone
	rep = s.Run(context.Background(), "test")
	assert.Equal(t, DayCreated, rep.Day("2024-09-04").Outcome)
	assert.Equal(t, DayExisting, rep.Day("2024-09-03").Outcome)
}

func TestRunIsIdempotentWithConcurrentRuns(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := service.New(store, roster.Static{"A", "B"}, nil)
	s := New(svc, nil, fastConfig()).WithClock(fixedClock())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Run(context.Background(), "test")
		}()
	}
	wg.Wait()

	for _, d := range s.Days() {
		v, err := svc.GetSheet(context.Background(), d)
		require.NoError(t, err)
		assert.Len(t, v.Records, 2)
	}
}

func TestWeekdayCalendar(t *testing.T) {
	off, err := ParseWeekdays("Sat, sun")
	require.NoError(t, err)
	holiday := time.Date(2024, 9, 16, 0, 0, 0, 0, time.UTC)
	cal := NewWeekdayCalendar(off, []time.Time{holiday})

	cases := []struct {
		day  time.Time
		want bool
	}{
		{time.Date(2024, 9, 13, 0, 0, 0, 0, time.UTC), true},  // Friday
		{time.Date(2024, 9, 14, 0, 0, 0, 0, time.UTC), false}, // Saturday
		{time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC), false}, // Sunday
		{holiday, false},
		{time.Date(2024, 9, 17, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		t.Run(dbtime.FormatDay(tc.day), func(t *testing.T) {
			assert.Equal(t, tc.want, cal.Tracked(tc.day))
		})
	}

	_, err = ParseWeekdays("sat,funday")
	assert.Error(t, err)
}

func TestStartRejectsBadSpec(t *testing.T) {
	cfg := fastConfig()
	cfg.Spec = "not a cron"
	s := New(&fakeReconciler{}, nil, cfg)
	assert.Error(t, s.Start())
	<-s.Stop().Done()
}

func TestStopWaitsForManualRun(t *testing.T) {
	entered := make(chan struct{}, 8)
	release := make(chan struct{})
	rec := &fakeReconciler{fn: func(string, int) (service.Outcome, error) {
		entered <- struct{}{}
		<-release
		return service.OutcomeExisting, nil
	}}
	cfg := fastConfig()
	cfg.BackfillDays = 0
	s := New(rec, nil, cfg).WithClock(fixedClock())

	// a run nobody scheduled through cron, like the startup catch-up
	go s.Run(context.Background(), "startup")
	<-entered

	stopped := s.Stop()
	select {
	case <-stopped.Done():
		t.Fatal("Stop returned while a run was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never finished after the run completed")
	}

	rep := s.Run(context.Background(), "ops")
	assert.Empty(t, rep.Days)
	assert.Equal(t, 1, rec.calls["2024-09-04"])
}
