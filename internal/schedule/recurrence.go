// Package schedule expands a session type and a recurrence descriptor into
// concrete slots. Expansion is pure date arithmetic: it takes the calendar
// date, time of day and location explicitly and never reads the clock, so
// the same input always yields the same slots in the same order.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
)

// Kind selects how one creation request expands.
type Kind string

const (
	KindSingle Kind = "single"
	KindWeekly Kind = "weekly"
)

const (
	// DefaultWeeks is used when a weekly descriptor leaves Weeks at zero.
	DefaultWeeks = 12
	// MaxWeeks bounds a single expansion.
	MaxWeeks = 52
)

// Recurrence is the descriptor of a slot creation request. Weekdays use
// time.Weekday numbering (Sunday = 0).
type Recurrence struct {
	Kind     Kind
	Weekdays []time.Weekday
	Weeks    int
}

// Date is a calendar date without a time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, apperr.Invalid("start_date", "expected YYYY-MM-DD")
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses HH:MM (24h). A trailing :SS is accepted and must be 00.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil || t.Second() != 0 {
		return Clock{}, apperr.Invalid("start_time", "expected HH:MM")
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// In combines date d and clock c into an instant in loc.
func (c Clock) In(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

// ParseWeekdays converts 0..6 indices to weekdays, rejecting anything else.
func ParseWeekdays(idx []int) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i > 6 {
			return nil, apperr.Invalid("weekdays", "weekday index must be between 0 (Sunday) and 6 (Saturday)")
		}
		out = append(out, time.Weekday(i))
	}
	return out, nil
}

// Normalize validates r and fills defaults. Duplicate weekdays collapse and
// the set is sorted.
func (r Recurrence) Normalize() (Recurrence, error) {
	switch r.Kind {
	case "", KindSingle:
		return Recurrence{Kind: KindSingle}, nil
	case KindWeekly:
	default:
		return Recurrence{}, apperr.Invalid("recurrence", fmt.Sprintf("unknown kind %q", r.Kind))
	}
	if len(r.Weekdays) == 0 {
		return Recurrence{}, apperr.Invalid("weekdays", "at least one weekday is required")
	}
	weeks := r.Weeks
	if weeks == 0 {
		weeks = DefaultWeeks
	}
	if weeks < 1 || weeks > MaxWeeks {
		return Recurrence{}, apperr.Invalid("weeks", fmt.Sprintf("must be between 1 and %d", MaxWeeks))
	}
	seen := make(map[time.Weekday]struct{}, len(r.Weekdays))
	days := make([]time.Weekday, 0, len(r.Weekdays))
	for _, wd := range r.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return Recurrence{}, apperr.Invalid("weekdays", "weekday index must be between 0 (Sunday) and 6 (Saturday)")
		}
		if _, ok := seen[wd]; ok {
			continue
		}
		seen[wd] = struct{}{}
		days = append(days, wd)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return Recurrence{Kind: KindWeekly, Weekdays: days, Weeks: weeks}, nil
}

// Tag renders the normalized descriptor for the slot's recurrence_tag,
// e.g. "single" or "weekly:1,3;weeks=12".
func (r Recurrence) Tag() string {
	if r.Kind != KindWeekly {
		return string(KindSingle)
	}
	parts := make([]string, len(r.Weekdays))
	for i, wd := range r.Weekdays {
		parts[i] = strconv.Itoa(int(wd))
	}
	return fmt.Sprintf("weekly:%s;weeks=%d", strings.Join(parts, ","), r.Weeks)
}
