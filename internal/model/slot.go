package model

import "time"

// Slot is one concrete, time-bounded offering of a session type. EndTime is
// computed from the session type's duration when the slot is created and is
// never re-derived. RecurrenceTag records the pattern that produced the slot
// and is not re-evaluated.
type Slot struct {
	ID            uint64    `json:"id"`              // schedule_slots.id
	SessionTypeID uint64    `json:"session_type_id"` // schedule_slots.session_type_id
	StartTime     time.Time `json:"start_time"`      // schedule_slots.start_time (UTC)
	EndTime       time.Time `json:"end_time"`        // schedule_slots.end_time (UTC)
	RecurrenceTag *string   `json:"recurrence_tag"`  // schedule_slots.recurrence_tag (nullable)
	CreatedAt     time.Time `json:"created_at"`      // schedule_slots.created_at
}

// SlotDetail is a slot with its session type embedded and the number of
// confirmed bookings at read time.
type SlotDetail struct {
	Slot
	SessionType SessionType `json:"session_type"`
	Confirmed   int         `json:"confirmed"`
	Remaining   int         `json:"remaining"`
}

// Capacity is the slot's maximum number of confirmed bookings.
func (d SlotDetail) Capacity() int { return d.SessionType.MaxParticipants }
