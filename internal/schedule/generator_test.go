package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/model"
)

func pilates() model.SessionType {
	return model.SessionType{ID: 7, Name: "Pilates", DurationMinutes: 60, MaxParticipants: 2}
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func mustClock(t *testing.T, s string) Clock {
	t.Helper()
	c, err := ParseClock(s)
	if err != nil {
		t.Fatalf("ParseClock(%q): %v", s, err)
	}
	return c
}

func startTimes(slots []model.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.StartTime.Format(time.RFC3339)
	}
	return out
}

func TestGenerateSingle(t *testing.T) {
	slots, err := Generate(Request{
		SessionType: pilates(),
		StartDate:   mustDate(t, "2025-01-06"),
		StartTime:   mustClock(t, "10:00"),
		Recurrence:  Recurrence{Kind: KindSingle},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("len = %d, want 1", len(slots))
	}
	s := slots[0]
	if want := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC); !s.StartTime.Equal(want) {
		t.Errorf("start = %v, want %v", s.StartTime, want)
	}
	if want := time.Date(2025, 1, 6, 11, 0, 0, 0, time.UTC); !s.EndTime.Equal(want) {
		t.Errorf("end = %v, want %v", s.EndTime, want)
	}
	if s.SessionTypeID != 7 || s.RecurrenceTag == nil || *s.RecurrenceTag != "single" {
		t.Errorf("unexpected slot %+v", s)
	}
}

func TestGenerateWeeklyTwoDaysTwoWeeks(t *testing.T) {
	slots, err := Generate(Request{
		SessionType: pilates(),
		StartDate:   mustDate(t, "2025-01-06"), // Monday
		StartTime:   mustClock(t, "10:00"),
		Recurrence:  Recurrence{Kind: KindWeekly, Weekdays: []time.Weekday{time.Wednesday, time.Monday}, Weeks: 2},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []string{
		"2025-01-06T10:00:00Z",
		"2025-01-08T10:00:00Z",
		"2025-01-13T10:00:00Z",
		"2025-01-15T10:00:00Z",
	}
	if got := startTimes(slots); !reflect.DeepEqual(got, want) {
		t.Fatalf("starts = %v, want %v", got, want)
	}
	for _, s := range slots {
		if s.EndTime.Sub(s.StartTime) != time.Hour {
			t.Errorf("slot %v lasts %v, want 1h", s.StartTime, s.EndTime.Sub(s.StartTime))
		}
		if *s.RecurrenceTag != "weekly:1,3;weeks=2" {
			t.Errorf("tag = %q", *s.RecurrenceTag)
		}
	}
}

func TestGenerateWeeklyDefaultsToTwelveWeeks(t *testing.T) {
	slots, err := Generate(Request{
		SessionType: pilates(),
		StartDate:   mustDate(t, "2025-01-06"),
		StartTime:   mustClock(t, "18:30"),
		Recurrence:  Recurrence{Kind: KindWeekly, Weekdays: []time.Weekday{time.Monday}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(slots) != 12 {
		t.Fatalf("len = %d, want 12", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if d := slots[i].StartTime.Sub(slots[i-1].StartTime); d != 7*24*time.Hour {
			t.Fatalf("gap %d = %v, want 7 days", i, d)
		}
	}
}

func TestGenerateSkipsWeekZeroDaysBeforeAnchor(t *testing.T) {
	slots, err := Generate(Request{
		SessionType: pilates(),
		StartDate:   mustDate(t, "2025-01-08"), // Wednesday
		StartTime:   mustClock(t, "09:00"),
		Recurrence:  Recurrence{Kind: KindWeekly, Weekdays: []time.Weekday{time.Monday, time.Wednesday}, Weeks: 2},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []string{
		"2025-01-08T09:00:00Z",
		"2025-01-13T09:00:00Z",
		"2025-01-15T09:00:00Z",
	}
	if got := startTimes(slots); !reflect.DeepEqual(got, want) {
		t.Fatalf("starts = %v, want %v", got, want)
	}
}

func TestGenerateSundayAnchorStartsWeek(t *testing.T) {
	// 2025-01-05 is a Sunday, so Saturday of week 0 is 2025-01-11.
	dates := Dates(mustDate(t, "2025-01-05"), Recurrence{Kind: KindWeekly, Weekdays: []time.Weekday{time.Saturday, time.Sunday}, Weeks: 1})
	var got []string
	for _, d := range dates {
		got = append(got, d.String())
	}
	want := []string{"2025-01-05", "2025-01-11"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dates = %v, want %v", got, want)
	}
}

func TestGenerateUsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	slots, err := Generate(Request{
		SessionType: pilates(),
		StartDate:   mustDate(t, "2025-01-06"),
		StartTime:   mustClock(t, "09:00"),
		Recurrence:  Recurrence{Kind: KindSingle},
		Location:    ny,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if want := time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC); !slots[0].StartTime.Equal(want) {
		t.Fatalf("start = %v, want %v", slots[0].StartTime, want)
	}
	if slots[0].StartTime.Location() != time.UTC {
		t.Fatalf("start location = %v, want UTC", slots[0].StartTime.Location())
	}
}

func TestGenerateDeterministic(t *testing.T) {
	req := Request{
		SessionType: pilates(),
		StartDate:   mustDate(t, "2025-03-01"),
		StartTime:   mustClock(t, "07:15"),
		Recurrence:  Recurrence{Kind: KindWeekly, Weekdays: []time.Weekday{time.Friday, time.Tuesday, time.Friday}, Weeks: 4},
	}
	first, err := Generate(req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := Generate(req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(startTimes(first), startTimes(second)) {
		t.Fatalf("outputs differ: %v vs %v", startTimes(first), startTimes(second))
	}
	// 2025-03-01 is a Saturday: week 0 contributes nothing.
	if len(first) != 6 {
		t.Fatalf("len = %d, want 6", len(first))
	}
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	base := Request{
		SessionType: pilates(),
		StartDate:   Date{Year: 2025, Month: time.January, Day: 6},
		StartTime:   Clock{Hour: 10},
		Recurrence:  Recurrence{Kind: KindSingle},
	}
	tests := []struct {
		name  string
		edit  func(r *Request)
		field string
	}{
		{"zero duration", func(r *Request) { r.SessionType.DurationMinutes = 0 }, "duration_minutes"},
		{"zero capacity", func(r *Request) { r.SessionType.MaxParticipants = 0 }, "max_participants"},
		{"missing session type", func(r *Request) { r.SessionType.ID = 0 }, "session_type_id"},
		{"unknown kind", func(r *Request) { r.Recurrence.Kind = "monthly" }, "recurrence"},
		{"weekly without days", func(r *Request) { r.Recurrence = Recurrence{Kind: KindWeekly} }, "weekdays"},
		{"too many weeks", func(r *Request) {
			r.Recurrence = Recurrence{Kind: KindWeekly, Weekdays: []time.Weekday{time.Monday}, Weeks: 53}
		}, "weeks"},
		{"negative weeks", func(r *Request) {
			r.Recurrence = Recurrence{Kind: KindWeekly, Weekdays: []time.Weekday{time.Monday}, Weeks: -1}
		}, "weeks"},
		{"weekday out of range", func(r *Request) {
			r.Recurrence = Recurrence{Kind: KindWeekly, Weekdays: []time.Weekday{7}}
		}, "weekdays"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.edit(&req)
			_, err := Generate(req)
			var fe *apperr.FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Fatalf("Generate() = %v, want invalid %s", err, tt.field)
			}
		})
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := ParseDate("2025-13-01"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("ParseDate(bad month) = %v", err)
	}
	if _, err := ParseClock("25:00"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("ParseClock(25:00) = %v", err)
	}
	if c, err := ParseClock("08:05:00"); err != nil || c.String() != "08:05" {
		t.Errorf("ParseClock(08:05:00) = %v, %v", c, err)
	}
	if _, err := ParseWeekdays([]int{1, 9}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("ParseWeekdays(9) = %v", err)
	}
}
