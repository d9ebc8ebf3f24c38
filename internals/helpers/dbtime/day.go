// file: internals/helpers/dbtime/day.go
package dbtime

import (
	"fmt"
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

const defaultZone = "Asia/Jakarta"

// LoadLocation resolves the school timezone:
// 1) the configured name
// 2) fallback Asia/Jakarta
// 3) last fallback UTC
func LoadLocation(name string) *time.Location {
	if s := strings.TrimSpace(name); s != "" {
		if loc, err := time.LoadLocation(s); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(defaultZone); err == nil {
		return loc
	}
	return time.UTC
}

// DateOf keeps the calendar date of t (in t's own location) at midnight UTC.
// Every sheet key goes through here so two callers never disagree on a day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is the school-local calendar day for the instant now.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

func AddDays(day time.Time, n int) time.Time {
	return DateOf(day).AddDate(0, 0, n)
}

// ParseDay reads "YYYY-MM-DD".
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func FormatDay(t time.Time) string {
	return DateOf(t).Format(DayLayout)
}

// ParseDays reads a comma separated list, skipping blanks.
func ParseDays(csv string) ([]time.Time, error) {
	var out []time.Time
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := ParseDay(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
