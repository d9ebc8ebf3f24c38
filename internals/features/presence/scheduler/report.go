// file: internals/features/presence/scheduler/report.go
package scheduler

import (
	"fmt"
	"time"
)

type DayOutcome string

const (
	DayCreated  DayOutcome = "created"
	DayExisting DayOutcome = "existing"
	DayRepaired DayOutcome = "repaired"
	// DayNeedsAttention is reported, not failed: retrying cannot change it
	DayNeedsAttention DayOutcome = "needs_attention"
	DaySkipped        DayOutcome = "skipped"
	DayFailed         DayOutcome = "failed"
)

// DayResult is the outcome of one day's unit of work.
type DayResult struct {
	Day      string        `json:"day"`
	Outcome  DayOutcome    `json:"outcome"`
	Attempts int           `json:"attempts"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// RunReport covers one scheduler run: today followed by the backfill window.
type RunReport struct {
	Trigger    string      `json:"trigger"`
	Today      string      `json:"today"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Days       []DayResult `json:"days"`
}

func (r *RunReport) Count(o DayOutcome) int {
	n := 0
	for _, d := range r.Days {
		if d.Outcome == o {
			n++
		}
	}
	return n
}

func (r *RunReport) Failed() bool { return r.Count(DayFailed) > 0 }

// Day returns the result for day ("YYYY-MM-DD"), or nil.
func (r *RunReport) Day(day string) *DayResult {
	for i := range r.Days {
		if r.Days[i].Day == day {
			return &r.Days[i]
		}
	}
	return nil
}

func (r *RunReport) Summary() string {
	return fmt.Sprintf("trigger=%s today=%s days=%d created=%d repaired=%d existing=%d attention=%d skipped=%d failed=%d dur=%s",
		r.Trigger, r.Today, len(r.Days),
		r.Count(DayCreated), r.Count(DayRepaired), r.Count(DayExisting), r.Count(DayNeedsAttention),
		r.Count(DaySkipped), r.Count(DayFailed),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}
