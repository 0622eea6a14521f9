// Package authz is the single authorization gate for the scheduler. Roles
// map to capability sets; every state-changing operation asks the gate
// before touching any guard or the store.
package authz

import (
	"strings"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
)

// Role is the role claim carried by an upstream-verified identity.
type Role string

const (
	RoleTrainer Role = "trainer"
	RoleParent  Role = "parent"
)

// ParseRole normalises a role claim. Unknown values map to "".
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleTrainer:
		return RoleTrainer
	case RoleParent:
		return RoleParent
	}
	return ""
}

// Action names an operation that needs a capability.
type Action string

const (
	CreateSessionType Action = "session_type:create"
	UpdateSessionType Action = "session_type:update"
	DeleteSessionType Action = "session_type:delete"
	CreateSlot        Action = "slot:create"
	DeleteSlot        Action = "slot:delete"
	ViewRoster        Action = "slot:roster"

	CreateBooking  Action = "booking:create"
	CancelBooking  Action = "booking:cancel"
	ListBookings   Action = "booking:list"
	ManageChildren Action = "children:manage"
)

// Identity is the (user id, role) pair the core consumes. Credential
// verification happens before an Identity is built.
type Identity struct {
	UserID uint64
	Role   Role
}

var capabilities = map[Role]map[Action]struct{}{
	RoleTrainer: {
		CreateSessionType: {},
		UpdateSessionType: {},
		DeleteSessionType: {},
		CreateSlot:        {},
		DeleteSlot:        {},
		ViewRoster:        {},
	},
	RoleParent: {
		CreateBooking:  {},
		CancelBooking:  {},
		ListBookings:   {},
		ManageChildren: {},
	},
}

// Allowed reports whether role carries the capability for action.
func Allowed(role Role, action Action) bool {
	_, ok := capabilities[role][action]
	return ok
}

// Authorize returns apperr.ErrForbidden unless id may perform action. An
// identity without a user id is never authorized.
func Authorize(id Identity, action Action) error {
	if id.UserID == 0 || !Allowed(id.Role, action) {
		return apperr.ErrForbidden
	}
	return nil
}
