package model

import "time"

// BookingStatus is the lifecycle state of a booking row. A booking that does
// not exist yet is the implicit initial state.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking links a child to a slot on behalf of the parent who created it.
//
// Fields:
//  ID            – primary key identifier.
//  SlotID        – slot whose capacity the booking consumes.
//  ChildID       – child attending the session.
//  ParentID      – user who created the booking.
//  Status        – confirmed or cancelled.
//  PaymentMethod – how the booking is billed ("credits").
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last status change.
type Booking struct {
	ID            uint64        `json:"id"`             // bookings.id
	SlotID        uint64        `json:"slot_id"`        // bookings.slot_id
	ChildID       uint64        `json:"child_id"`       // bookings.child_id
	ParentID      uint64        `json:"parent_id"`      // bookings.parent_id
	Status        BookingStatus `json:"status"`         // bookings.status
	PaymentMethod string        `json:"payment_method"` // bookings.payment_method
	CreatedAt     time.Time     `json:"created_at"`     // bookings.created_at
	UpdatedAt     time.Time     `json:"updated_at"`     // bookings.updated_at
}

// ChildSummary is the part of a child record shown alongside a booking.
type ChildSummary struct {
	ID        uint64 `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SlotSummary is the part of a slot shown alongside a booking.
type SlotSummary struct {
	ID          uint64             `json:"id"`
	StartTime   time.Time          `json:"start_time"`
	EndTime     time.Time          `json:"end_time"`
	SessionType SessionTypeSummary `json:"session_type"`
}

// SessionTypeSummary is the part of a session type shown alongside a booking.
type SessionTypeSummary struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

// BookingDetail is a booking with its child, slot and session type embedded.
type BookingDetail struct {
	Booking
	Child ChildSummary `json:"child"`
	Slot  SlotSummary  `json:"slot"`
}
