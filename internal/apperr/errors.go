// Package apperr defines the rejection taxonomy shared by the scheduling and
// booking packages. Every rejection is a sentinel so that callers can use
// errors.Is regardless of how many layers wrapped it; handlers translate
// them into HTTP responses in one place.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the caller's role does not carry the
	// capability for the requested action.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a referenced session type, slot, child or
	// booking does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput covers malformed descriptors, non-positive durations
	// and capacities, and time parse failures. Use Invalid to attach the
	// field at fault.
	ErrInvalidInput = errors.New("invalid input")

	ErrPastSession               = errors.New("session has already started")
	ErrDuplicateBooking          = errors.New("child already booked for this session")
	ErrSlotFull                  = errors.New("session is full")
	ErrCancellationWindowExpired = errors.New("cannot cancel within the cancellation window")

	// ErrInvalidTransition is returned when a booking is asked to leave a
	// terminal state, e.g. cancelling an already cancelled booking.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrSlotHasBookings is returned when a slot with confirmed bookings is
	// asked to be deleted.
	ErrSlotHasBookings = errors.New("slot has confirmed bookings")

	// ErrStorageUnavailable wraps failures of the persistence layer. It is
	// the only class eligible for retry, and only for idempotent reads.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// FieldError is an ErrInvalidInput carrying the offending field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

// Invalid returns a FieldError for field.
func Invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// Storage wraps err as ErrStorageUnavailable. Taxonomy errors and nil pass
// through untouched so that a rejection raised inside a transaction is not
// reclassified on the way out.
func Storage(err error) error {
	if err == nil || IsRejection(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// IsRejection reports whether err belongs to the domain taxonomy (anything
// other than a storage fault).
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrForbidden, ErrNotFound, ErrInvalidInput, ErrPastSession,
		ErrDuplicateBooking, ErrSlotFull, ErrCancellationWindowExpired,
		ErrInvalidTransition, ErrSlotHasBookings, ErrStorageUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Code returns the stable machine-readable code for err, or "internal".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrPastSession):
		return "past_session"
	case errors.Is(err, ErrDuplicateBooking):
		return "duplicate_booking"
	case errors.Is(err, ErrSlotFull):
		return "slot_full"
	case errors.Is(err, ErrCancellationWindowExpired):
		return "cancellation_window_expired"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrSlotHasBookings):
		return "slot_has_bookings"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}
