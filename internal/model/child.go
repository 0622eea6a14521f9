package model

import "time"

// Child is owned by the children collaborator. The scheduling core only
// reads existence and ownership; it never mutates a child.
type Child struct {
	ID          uint64     `json:"id"`            // children.id
	ParentID    uint64     `json:"parent_id"`     // children.parent_id
	FirstName   string     `json:"first_name"`    // children.first_name
	LastName    string     `json:"last_name"`     // children.last_name
	DateOfBirth *time.Time `json:"date_of_birth"` // children.date_of_birth (nullable, DATE)
	Notes       *string    `json:"notes"`         // children.notes (nullable)
	IsActive    bool       `json:"is_active"`     // children.is_active
	CreatedAt   time.Time  `json:"created_at"`    // children.created_at
}
