package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionType describes a bookable kind of session offered by the trainer.
// Session types are deactivated rather than deleted so that slots created
// from them stay valid.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – display name.
//  Description     – optional free text.
//  DurationMinutes – length of each slot generated from this type.
//  MaxParticipants – capacity of each slot.
//  Credits         – credits consumed by one booking.
//  Price           – list price of one booking.
//  IsActive        – false once the trainer retires the type.
type SessionType struct {
	ID              uint64          `json:"id"`               // session_types.id
	Name            string          `json:"name"`             // session_types.name
	Description     *string         `json:"description"`      // session_types.description (nullable)
	DurationMinutes int             `json:"duration_minutes"` // session_types.duration_minutes
	MaxParticipants int             `json:"max_participants"` // session_types.max_participants
	Credits         int             `json:"credits"`          // session_types.credits
	Price           decimal.Decimal `json:"price"`            // session_types.price
	IsActive        bool            `json:"is_active"`        // session_types.is_active
	CreatedAt       time.Time       `json:"created_at"`       // session_types.created_at
	UpdatedAt       time.Time       `json:"updated_at"`       // session_types.updated_at
}

// Duration returns the slot length as a time.Duration.
func (s SessionType) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
