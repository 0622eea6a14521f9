package schedule

import (
	"sort"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/model"
)

// Request is one slot creation request as the trainer submits it.
type Request struct {
	SessionType model.SessionType
	StartDate   Date
	StartTime   Clock
	Recurrence  Recurrence
	// Location is the zone the calendar date and time of day are read in.
	// Nil means UTC.
	Location *time.Location
}

// Generate expands req into slots sorted by start time. The returned slots
// carry UTC instants and have no id; persistence assigns ids and decides
// about duplicates.
func Generate(req Request) ([]model.Slot, error) {
	st := req.SessionType
	if st.ID == 0 {
		return nil, apperr.Invalid("session_type_id", "is required")
	}
	if st.DurationMinutes <= 0 {
		return nil, apperr.Invalid("duration_minutes", "must be positive")
	}
	if st.MaxParticipants <= 0 {
		return nil, apperr.Invalid("max_participants", "must be positive")
	}
	rec, err := req.Recurrence.Normalize()
	if err != nil {
		return nil, err
	}
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}

	tag := rec.Tag()
	dates := Dates(req.StartDate, rec)
	slots := make([]model.Slot, 0, len(dates))
	for _, d := range dates {
		start := req.StartTime.In(d, loc).UTC()
		t := tag
		slots = append(slots, model.Slot{
			SessionTypeID: st.ID,
			StartTime:     start,
			EndTime:       start.Add(st.Duration()),
			RecurrenceTag: &t,
		})
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].StartTime.Before(slots[j].StartTime)
	})
	return slots, nil
}

// Dates returns the calendar dates a normalized recurrence produces from
// anchor, in ascending order.
//
// Weeks run Sunday to Saturday. In week 0 a weekday's occurrence is the
// matching day of the anchor's week and is dropped when it falls before the
// anchor; later weeks add 7 days per week and are always kept.
func Dates(anchor Date, rec Recurrence) []Date {
	if rec.Kind != KindWeekly {
		return []Date{anchor}
	}
	aw := int(anchor.Weekday())
	out := make([]Date, 0, len(rec.Weekdays)*rec.Weeks)
	for week := 0; week < rec.Weeks; week++ {
		for _, wd := range rec.Weekdays {
			d := anchor.AddDays(int(wd) - aw + 7*week)
			if week == 0 && d.Before(anchor) {
				continue
			}
			out = append(out, d)
		}
	}
	return out
}
