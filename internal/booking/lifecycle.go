package booking

import (
	"time"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
	"github.com/iliyamo/podium-scheduler/internal/model"
)

// DefaultCancellationWindow is how long before a session a confirmed
// booking can still be cancelled.
const DefaultCancellationWindow = 24 * time.Hour

// None is the state of a booking that has not been created.
const None model.BookingStatus = ""

var transitions = map[model.BookingStatus][]model.BookingStatus{
	None:                   {model.BookingConfirmed},
	model.BookingConfirmed: {model.BookingCancelled},
	model.BookingCancelled: {},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to model.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.BookingStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Policy holds the time rules of the lifecycle.
type Policy struct {
	CancellationWindow time.Duration
}

// DefaultPolicy returns the policy with the 24h cancellation cutoff.
func DefaultPolicy() Policy {
	return Policy{CancellationWindow: DefaultCancellationWindow}
}

// CheckCreate validates the time rule for none -> confirmed. The session
// must start strictly after now. Duplicate and capacity checks run in the
// store under the slot's lock.
func (p Policy) CheckCreate(slotStart, now time.Time) error {
	if !slotStart.After(now) {
		return apperr.ErrPastSession
	}
	return nil
}

// CheckCancel validates confirmed -> cancelled for a booking in state
// current. The remaining time before the session must exceed the window;
// exactly the window is already too late.
func (p Policy) CheckCancel(current model.BookingStatus, slotStart, now time.Time) error {
	if !CanTransition(current, model.BookingCancelled) {
		return apperr.ErrInvalidTransition
	}
	if slotStart.Sub(now) <= p.CancellationWindow {
		return apperr.ErrCancellationWindowExpired
	}
	return nil
}
