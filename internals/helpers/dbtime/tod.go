// file: internals/helpers/dbtime/tod.go
package dbtime

import (
	"fmt"
	"strings"
	"time"
)

// Tod is a wall-clock time of day (no date, no zone).
type Tod struct{ time.Time }

// From: bikin Tod dari time.Time (ambil HH:mm:ss, buang tanggal & zona)
func From(t time.Time) Tod {
	return Tod{
		Time: time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC),
	}
}

// ParseTod reads "HH:mm[:ss]".
func ParseTod(s string) (Tod, error) {
	s = strings.TrimSpace(s)
	if len(s) == 5 { // "HH:MM"
		s += ":00"
	}
	tt, err := time.Parse("15:04:05", s)
	if err != nil {
		return Tod{}, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return From(tt), nil
}

func (t Tod) String() string { return t.Format("15:04:05") }

// CronSpec is the five-field spec firing once a day at t.
func (t Tod) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
}
