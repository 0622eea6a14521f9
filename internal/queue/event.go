// Package queue defines the booking events exchanged over RabbitMQ, the
// publisher used by the outbox relay and the consumer that records them.
package queue

import (
	"fmt"
	"time"
)

// Routing keys on the bookings topic exchange.
const (
	RoutingBookingConfirmed = "booking.confirmed"
	RoutingBookingCancelled = "booking.cancelled"
)

// BookingEvent is emitted on every booking transition. It carries enough
// context for downstream consumers to log or notify without querying the
// primary database.
type BookingEvent struct {
	EventID     string `json:"event_id"`
	Type        string `json:"type"` // one of the routing keys
	BookingID   uint64 `json:"booking_id"`
	SlotID      uint64 `json:"slot_id"`
	ChildID     uint64 `json:"child_id"`
	ParentID    uint64 `json:"parent_id"`
	ChildName   string `json:"child_name"`
	SessionType string `json:"session_type"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
	Status      string `json:"status"`
	OccurredAt  string `json:"occurred_at"`
}

// LogLine renders the event as one line of the booking log.
func (ev BookingEvent) LogLine() string {
	verb := "Booking confirmed"
	if ev.Type == RoutingBookingCancelled {
		verb = "Booking cancelled"
	}
	return fmt.Sprintf("[%s] %s | event_id=%s | booking_id=%d | parent_id=%d | child_id=%d | child=%q | session=%q | slot_id=%d | starts_at=%s\n",
		ev.OccurredAt, verb, ev.EventID, ev.BookingID, ev.ParentID, ev.ChildID, ev.ChildName, ev.SessionType, ev.SlotID, ev.StartsAt)
}

// FormatTime renders t the way events carry timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
