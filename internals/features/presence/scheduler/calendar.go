// file: internals/features/presence/scheduler/calendar.go
package scheduler

import (
	"fmt"
	"strings"
	"time"

	"crecheku_backend/internals/helpers/dbtime"
)

// Calendar decides whether a day is expected to have a sheet.
type Calendar interface {
	Tracked(day time.Time) bool
}

type CalendarFunc func(day time.Time) bool

func (f CalendarFunc) Tracked(day time.Time) bool { return f(day) }

// EveryDay tracks all days.
var EveryDay = CalendarFunc(func(time.Time) bool { return true })

// WeekdayCalendar skips weekly off-days and listed holidays.
type WeekdayCalendar struct {
	off      map[time.Weekday]bool
	holidays map[string]bool
}

func NewWeekdayCalendar(offDays []time.Weekday, holidays []time.Time) *WeekdayCalendar {
	c := &WeekdayCalendar{
		off:      make(map[time.Weekday]bool, len(offDays)),
		holidays: make(map[string]bool, len(holidays)),
	}
	for _, d := range offDays {
		c.off[d] = true
	}
	for _, h := range holidays {
		c.holidays[dbtime.FormatDay(h)] = true
	}
	return c
}

func (c *WeekdayCalendar) Tracked(day time.Time) bool {
	day = dbtime.DateOf(day)
	if c.off[day.Weekday()] {
		return false
	}
	return !c.holidays[dbtime.FormatDay(day)]
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekdays reads "sat,sun" style lists (case-insensitive, blanks skipped).
func ParseWeekdays(csv string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(csv, ",") {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" {
			continue
		}
		wd, ok := weekdayNames[p]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		out = append(out, wd)
	}
	return out, nil
}
